package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerow/internal/cli/ui"
	"github.com/conduit-lang/activerow/internal/orm/entity"
)

// parseScalar reads a key argument, preferring int64 so numeric
// identities match what executors return
func parseScalar(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// parseAssignments turns field=value arguments into entity data. A value
// that parses as JSON takes its JSON type; anything else is a string.
func parseAssignments(args []string) (map[string]interface{}, error) {
	data := make(map[string]interface{}, len(args))
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected field=value", arg)
		}
		data[field] = parseValue(raw)
	}
	return data, nil
}

func parseValue(raw string) interface{} {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return raw
	case map[string]interface{}, []interface{}:
		return raw
	default:
		return val
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func printEntity(ctx context.Context, cmd *cobra.Command, e *entity.Entity) error {
	row, err := e.ToArray(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(row)
	}

	table := ui.NewKeyValueTable(out, noColor)
	for _, field := range columns(e.GetKeyField(), []map[string]interface{}{row}) {
		table.AddRow(field, formatValue(row[field]))
	}
	table.Render()
	return nil
}

func printEntities(ctx context.Context, cmd *cobra.Command, entities []*entity.Entity) error {
	rows := make([]map[string]interface{}, 0, len(entities))
	keyField := ""
	for _, e := range entities {
		row, err := e.ToArray(ctx)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		keyField = e.GetKeyField()
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprint(out, ui.Warning("no records", noColor))
		return nil
	}

	cols := columns(keyField, rows)
	table := ui.NewTable(out, noColor, cols...)
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := row[c]; ok {
				cells[i] = formatValue(v)
			}
		}
		table.AddRow(cells...)
	}
	table.Render()
	return nil
}

// columns returns every field present in rows, the key field first and
// the rest sorted
func columns(keyField string, rows []map[string]interface{}) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for f := range row {
			seen[f] = struct{}{}
		}
	}

	var cols []string
	if _, ok := seen[keyField]; ok && keyField != "" {
		cols = append(cols, keyField)
		delete(seen, keyField)
	}
	rest := make([]string, 0, len(seen))
	for f := range seen {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}
