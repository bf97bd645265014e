package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerow/internal/cli/ui"
	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/relationships"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/unitofwork"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

var (
	outputJSON bool
	deleteYes  bool
	linksLimit int
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print records as JSON")
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <model> <key>",
		Short: "Show one record",
		Long: `Load the record of <model> whose identity is <key> and print every
field the --role roles may view, computed fields included.`,
		Example: `  activerow get user 1
  activerow get user 1 --role admin --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				return a.run(cmd.Context(), func(ctx context.Context, s *unitofwork.Scope) error {
					e, err := s.Find(ctx, args[0], parseScalar(args[1]))
					if err != nil {
						return reportError(cmd, a, args[0], err)
					}
					return printEntity(ctx, cmd, e)
				})
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

// NewCreateCommand creates the create command
func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <model> [field=value...]",
		Short: "Insert a record",
		Long: `Build a new <model> entity from field=value pairs and flush it.

Values are parsed as JSON when they can be (numbers, booleans, null,
quoted strings) and taken literally otherwise.`,
		Example: `  activerow create user name=Ann email=ann@example.com age=31`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				return a.run(cmd.Context(), func(ctx context.Context, s *unitofwork.Scope) error {
					e, err := s.New(args[0], data)
					if err != nil {
						return reportError(cmd, a, args[0], err)
					}
					if err := save(ctx, cmd, e); err != nil {
						return err
					}
					ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created %s %v", e.GetModel(), e.GetKey()), noColor)
					return printEntity(ctx, cmd, e)
				})
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

// NewSetCommand creates the set command
func NewSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <model> <key> field=value...",
		Short: "Update fields of a record",
		Long: `Write field=value pairs to an existing record. Only fields whose
value actually changes are sent to storage.`,
		Example: `  activerow set user 1 name=Annie`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				return a.run(cmd.Context(), func(ctx context.Context, s *unitofwork.Scope) error {
					e, err := s.Find(ctx, args[0], parseScalar(args[1]))
					if err != nil {
						return reportError(cmd, a, args[0], err)
					}
					if err := e.SetAll(data); err != nil {
						e.Discard()
						return reportError(cmd, a, args[0], err)
					}
					if !e.IsDirty() && !e.GetErrors().HasErrors() {
						fmt.Fprint(cmd.OutOrStdout(), ui.Warning("nothing changed", noColor))
						return nil
					}
					if err := save(ctx, cmd, e); err != nil {
						return err
					}
					ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Updated %s %v", e.GetModel(), e.GetKey()), noColor)
					return printEntity(ctx, cmd, e)
				})
			})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <model> <key>",
		Short: "Delete a record",
		Example: `  activerow delete user 1 --role admin
  activerow delete user 1 --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, key := args[0], parseScalar(args[1])
			if !deleteYes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Delete %s %v?", model, key),
					Default: false,
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			return withApp(cmd.Context(), func(a *app) error {
				return a.run(cmd.Context(), func(ctx context.Context, s *unitofwork.Scope) error {
					e, err := s.Find(ctx, model, key)
					if err != nil {
						return reportError(cmd, a, model, err)
					}
					if err := e.Delete(ctx); err != nil {
						return reportError(cmd, a, model, err)
					}
					ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %s %v", model, key), noColor)
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// NewLinksCommand creates the links command
func NewLinksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links <model> <key> <link>",
		Short: "Follow an association of a record",
		Long: `Resolve the association <link> of a record. A to-one link prints the
linked record, a to-many link prints the matching records.`,
		Example: `  activerow links user 1 account
  activerow links user 1 posts --limit 10`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, link := args[0], args[2]
			return withApp(cmd.Context(), func(a *app) error {
				return a.run(cmd.Context(), func(ctx context.Context, s *unitofwork.Scope) error {
					e, err := s.Find(ctx, model, parseScalar(args[1]))
					if err != nil {
						return reportError(cmd, a, model, err)
					}
					d, err := e.Descriptor(link)
					if err != nil {
						return reportError(cmd, a, model, err)
					}

					if d.Cardinality == relationships.Many {
						coll, err := e.Many(ctx, link)
						if err != nil {
							return err
						}
						if linksLimit > 0 {
							coll = coll.Take(linksLimit)
						}
						entities, err := coll.All(ctx)
						if err != nil {
							return err
						}
						return printEntities(ctx, cmd, entities)
					}

					target, err := e.One(ctx, link)
					if err != nil {
						return err
					}
					if target == nil {
						fmt.Fprint(cmd.OutOrStdout(), ui.Warning(fmt.Sprintf("%s %v has no %s", model, e.GetKey(), link), noColor))
						return nil
					}
					return printEntity(ctx, cmd, target)
				})
			})
		},
	}
	addOutputFlag(cmd)
	cmd.Flags().IntVar(&linksLimit, "limit", 0, "Maximum records for to-many links (0 = all)")
	return cmd
}

// save flushes e, reporting validation failures recorded before or
// during the flush. A failed save leaves nothing pending for the closing
// unit of work.
func save(ctx context.Context, cmd *cobra.Command, e *entity.Entity) error {
	if errs := e.GetErrors(); errs.HasErrors() {
		e.Discard()
		return reportValidation(cmd, e.GetModel(), errs)
	}
	if _, err := e.Flush(ctx); err != nil {
		e.Discard()
		return err
	}
	if errs := e.GetErrors(); errs.HasErrors() {
		e.Discard()
		return reportValidation(cmd, e.GetModel(), errs)
	}
	return nil
}

func reportValidation(cmd *cobra.Command, model string, errs validation.Errors) error {
	red := color.New(color.FgRed)
	w := cmd.ErrOrStderr()
	for _, field := range errs.Fields() {
		red.Fprintf(w, "✗ %s.%s: %s\n", model, field, errs[field])
	}
	return fmt.Errorf("%s not saved: %w", model, errs.Copy())
}

// reportError prints suggestions for an unknown model and passes err on
func reportError(cmd *cobra.Command, a *app, model string, err error) error {
	if errors.Is(err, schema.ErrUnknownModel) {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ModelNotFoundError(model, a.registry.List(), noColor))
	}
	return err
}
