package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/export/records"
)

var recordsFlags struct {
	file string
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage the local record store",
}

var recordsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load orders and customers from a JSON dump",
	Long: `Load orders and customers into the configured record store.

The file is a JSON object with "orders" and "customers" arrays. Records with
an existing id are replaced. Use --file - to read stdin.

Examples:
  courier records import --file dump.json
  cat dump.json | courier records import --file -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)

		var in io.Reader
		switch recordsFlags.file {
		case "":
			return cli.NewConfigError("file", "a records file is required")
		case "-":
			in = cmd.InOrStdin()
		default:
			f, err := os.Open(recordsFlags.file)
			if err != nil {
				return cli.NewConfigError("file", err.Error())
			}
			defer f.Close()
			in = f
		}

		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := records.Import(ctx, app.Records, in)
		if err != nil {
			return cli.NewCommandError("records import", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d orders and %d customers\n", res.Orders, res.Customers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsImportCmd)

	recordsImportCmd.Flags().StringVarP(&recordsFlags.file, "file", "f", "", "JSON dump file, - for stdin (required)")
}
