package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
)

var formatsFlags struct {
	recordType string
	file       string
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "Manage export formats",
	Long: `List, inspect and manage export formats.

Built-in formats are read-only. Custom formats are stored in the configured
format store and may be added from a YAML or JSON file.

Examples:
  courier formats list --type orders
  courier formats show --type orders legacy_import
  courier formats add --file warehouse.yaml
  courier formats activate --type orders custom_warehouse
  courier formats delete --type orders custom_warehouse`,
}

var formatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		t, err := parseRecordType(formatsFlags.recordType)
		if err != nil {
			return err
		}
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		active, err := app.Formats.ActiveFormat(ctx, t)
		if err != nil {
			return cli.NewCommandError("formats list", err)
		}
		defs, err := app.Formats.ListFormats(ctx, t)
		if err != nil {
			return cli.NewCommandError("formats list", err)
		}

		table := &cli.Table{Header: []string{"KEY", "NAME", "KIND", "DELIMITER", "ROW MODE", "COLUMNS", "ACTIVE"}}
		raw := make([]map[string]any, 0, len(defs))
		for _, d := range defs {
			isActive := ""
			if d.Key == active {
				isActive = "*"
			}
			cols := app.Generator.Columns(d)
			table.Rows = append(table.Rows, []string{
				d.Key, d.Name, d.Kind.String(), fmt.Sprintf("%q", d.Delimiter), string(d.RowMode), fmt.Sprint(len(cols)), isActive,
			})
			raw = append(raw, map[string]any{
				"key":       d.Key,
				"name":      d.Name,
				"kind":      d.Kind.String(),
				"delimiter": string(d.Delimiter),
				"row_mode":  d.RowMode,
				"columns":   cols,
				"active":    d.Key == active,
			})
		}
		table.Raw = raw
		return render(cmd.OutOrStdout(), table)
	},
}

var formatsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show the effective columns of a format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		t, err := parseRecordType(formatsFlags.recordType)
		if err != nil {
			return err
		}
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		def, err := app.Formats.GetFormat(ctx, t, args[0])
		if err != nil {
			return cli.NewCommandError("formats show", err)
		}
		cols := app.Generator.Columns(def)
		table := &cli.Table{Header: []string{"#", "KEY", "HEADER"}, Raw: cols}
		for i, c := range cols {
			table.Rows = append(table.Rows, []string{fmt.Sprint(i + 1), c.Key, c.Header})
		}
		return render(cmd.OutOrStdout(), table)
	},
}

var formatsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a custom format from a YAML or JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		cf, err := readCustomFormat(formatsFlags.file)
		if err != nil {
			return err
		}
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		saved, err := app.Formats.SaveCustomFormat(ctx, cf)
		if err != nil {
			return cli.NewCommandError("formats add", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Format %s/%s saved\n", saved.RecordType, saved.Key)
		return nil
	},
}

var formatsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a custom format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		t, err := parseRecordType(formatsFlags.recordType)
		if err != nil {
			return err
		}
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Formats.DeleteCustomFormat(ctx, t, args[0]); err != nil {
			return cli.NewCommandError("formats delete", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Format %s/%s deleted\n", t, args[0])
		return nil
	},
}

var formatsActivateCmd = &cobra.Command{
	Use:   "activate <key>",
	Short: "Select the format used when an export names none",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		t, err := parseRecordType(formatsFlags.recordType)
		if err != nil {
			return err
		}
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Formats.SetActiveFormat(ctx, t, args[0]); err != nil {
			return cli.NewCommandError("formats activate", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Active %s format is now %s\n", t, args[0])
		return nil
	},
}

// readCustomFormat decodes a custom format file. JSON is valid YAML, so one
// decoder serves both.
func readCustomFormat(path string) (*format.CustomFormat, error) {
	if path == "" {
		return nil, cli.NewConfigError("file", "a format file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cli.NewConfigError("file", err.Error())
	}
	var cf format.CustomFormat
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, cli.NewConfigError("file", fmt.Sprintf("failed to parse %s: %v", path, err))
	}
	if _, err := export.ParseRecordType(string(cf.RecordType)); err != nil {
		return nil, cli.NewConfigError("record_type", err.Error())
	}
	return &cf, nil
}

func init() {
	rootCmd.AddCommand(formatsCmd)
	formatsCmd.AddCommand(formatsListCmd, formatsShowCmd, formatsAddCmd, formatsDeleteCmd, formatsActivateCmd)

	for _, c := range []*cobra.Command{formatsListCmd, formatsShowCmd, formatsDeleteCmd, formatsActivateCmd} {
		c.Flags().StringVarP(&formatsFlags.recordType, "type", "t", "orders", "record type: orders, customers")
	}
	formatsAddCmd.Flags().StringVarP(&formatsFlags.file, "file", "f", "", "YAML or JSON format file (required)")
}
