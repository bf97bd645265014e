package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerow/internal/cli/ui"
	"github.com/conduit-lang/activerow/internal/orm/schema"
)

// NewModelsCommand creates the models command
func NewModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [model]",
		Short: "List declared models or describe one",
		Long: `Parse the models file, check that every link targets a declared
model, and print the result. With a model name, print its fields,
links and access rules.`,
		Example: `  activerow models
  activerow models user`,
		Args: cobra.MaximumNArgs(1),
		RunE: runModels,
	}
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		names := reg.List()
		if len(names) == 0 {
			fmt.Fprint(out, ui.Warning(fmt.Sprintf("%s declares no models", cfg.Models), noColor))
			return nil
		}

		table := ui.NewTable(out, noColor, "MODEL", "TABLE", "KEY", "FIELDS", "LINKS", "AUTOSAVE")
		for _, name := range names {
			m, _ := reg.Get(name)
			table.AddRow(m.Name, m.Table, keyLabel(m), strconv.Itoa(len(m.Fields)),
				strconv.Itoa(len(m.Links)), strconv.FormatBool(m.Autosave()))
		}
		table.Render()
		return nil
	}

	m, ok := reg.Get(args[0])
	if !ok {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ModelNotFoundError(args[0], reg.List(), noColor))
		return fmt.Errorf("model %s: %w", args[0], schema.ErrUnknownModel)
	}
	describeModel(cmd, m)
	return nil
}

func keyLabel(m *schema.Model) string {
	if m.KeyField == "" {
		return "-"
	}
	return m.KeyField
}

func describeModel(cmd *cobra.Command, m *schema.Model) {
	out := cmd.OutOrStdout()
	title := color.New(color.Bold, color.FgCyan)

	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("model", m.Name)
	kv.AddRow("table", m.Table)
	kv.AddRow("key", keyLabel(m))
	kv.AddRow("autosave", strconv.FormatBool(m.Autosave()))
	if len(m.Fields) > 0 {
		kv.AddRow("fields", strings.Join(m.Fields, ", "))
	} else {
		kv.AddRow("fields", "(any)")
	}
	if hooked := m.Hooks.Fields(); len(hooked) > 0 {
		kv.AddRow("hooks", strings.Join(hooked, ", "))
	}
	if r := m.Rules; r != nil {
		kv.AddRow("create", rolesLabel(r.Create))
		kv.AddRow("edit", rolesLabel(r.Edit))
		kv.AddRow("delete", rolesLabel(r.Delete))
		if len(r.Hidden) > 0 {
			kv.AddRow("hidden", strings.Join(r.Hidden, ", ")+" (visible to "+rolesLabel(r.ViewHidden)+")")
		}
		if len(r.ReadOnly) > 0 {
			kv.AddRow("readonly", strings.Join(r.ReadOnly, ", "))
		}
	}
	kv.Render()

	if len(m.Links) == 0 {
		return
	}
	fmt.Fprintln(out)
	title.Fprintln(out, "Links")
	table := ui.NewTable(out, noColor, "NAME", "TARGET", "CARDINALITY", "FOREIGN KEY")
	for _, l := range m.Links {
		card := "one"
		if l.Many {
			card = "many"
		}
		table.AddRow(l.Name(), l.Target, card, l.ForeignKey)
	}
	table.Render()
}

func rolesLabel(roles []string) string {
	if len(roles) == 0 {
		return "anyone"
	}
	return strings.Join(roles, ", ")
}
