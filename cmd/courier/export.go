package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/job"
)

var exportFlags struct {
	recordType   string
	ids          []string
	statuses     []string
	since        string
	onlyNew      bool
	limit        int
	format       string
	method       string
	out          string
	noHeader     bool
	markExported bool
	showProgress bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run one export to completion",
	Long: `Create an export job and run it in this process until it finishes.

Records are selected by --ids, or by a query (--status, --since, --only-new)
when no ids are given. Customer ids may name guests as guest:<order>:<email>.
The finished file stays in the export directory and is copied to --out when
set ("-" writes it to stdout).

Examples:
  # Export two orders with the active format
  courier export --type orders --ids 1001,1002 --out orders.csv

  # Export all completed orders not exported before, with a custom format
  courier export --type orders --status completed --only-new --format warehouse

  # Export customers and upload them over SFTP
  courier export --type customers --ids 7,guest:1001:jane@example.com --method sftp`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.recordType, "type", "t", "", "record type: orders, customers (required)")
	f.StringSliceVar(&exportFlags.ids, "ids", nil, "record identifiers")
	f.StringSliceVar(&exportFlags.statuses, "status", nil, "select orders with these statuses when no ids are given")
	f.StringVar(&exportFlags.since, "since", "", "select records created at or after this RFC3339 time")
	f.BoolVar(&exportFlags.onlyNew, "only-new", false, "select only records not exported before")
	f.IntVar(&exportFlags.limit, "limit", 0, "maximum number of selected records (0 = no limit)")
	f.StringVarP(&exportFlags.format, "format", "f", "", "format key (defaults to the active format)")
	f.StringVarP(&exportFlags.method, "method", "m", "local", "delivery method: local, email, http_post, ftp, ftps, sftp")
	f.StringVar(&exportFlags.out, "out", "", "copy the finished file here (- for stdout)")
	f.BoolVar(&exportFlags.noHeader, "no-header", false, "omit the header row")
	f.BoolVar(&exportFlags.markExported, "mark-exported", false, "flag exported records so --only-new skips them")
	f.BoolVar(&exportFlags.showProgress, "progress", true, "show progress on stderr")
	exportCmd.MarkFlagRequired("type")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := ctxOrBackground(cmd)

	t, err := parseRecordType(exportFlags.recordType)
	if err != nil {
		return err
	}
	ids, err := export.ParseIdentifiers(exportFlags.ids)
	if err != nil {
		return cli.NewConfigError("ids", err.Error())
	}

	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if len(ids) == 0 {
		filter := export.QueryFilter{
			Statuses: exportFlags.statuses,
			OnlyNew:  exportFlags.onlyNew,
			Limit:    exportFlags.limit,
		}
		if exportFlags.since != "" {
			since, err := time.Parse(time.RFC3339, exportFlags.since)
			if err != nil {
				return cli.NewConfigError("since", err.Error())
			}
			filter.Since = &since
		}
		if ids, err = app.Records.QueryIDs(ctx, t, filter); err != nil {
			return cli.NewCommandError("export", err)
		}
	}

	includeHeader := config.Bool(app.Config.Export.IncludeHeader, config.DefaultExportIncludeHeader)
	j, err := app.Manager.StartExport(ctx, job.StartRequest{
		RecordType: t,
		IDs:        ids,
		FormatKey:  exportFlags.format,
		Method:     job.Method(exportFlags.method),
		Invocation: job.InvocationManual,
		Options: job.Options{
			IncludeHeader: includeHeader && !exportFlags.noHeader,
			AddBOM:        app.Config.Export.AddBOM,
			MarkExported:  exportFlags.markExported,
		},
	})
	if errors.Is(err, export.ErrNothingToExport) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to export")
		return nil
	}
	if err != nil {
		return cli.NewCommandError("export", err)
	}

	var progress cli.ProgressReporter
	if exportFlags.showProgress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "records")
		progress.Start(int64(len(j.IDs)))
	}
	for !j.Status.Terminal() {
		if j, err = app.Manager.Tick(ctx, j.ID); err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return cli.NewCommandError("export", err)
		}
		if progress != nil {
			progress.Update(int64(j.Cursor))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if j.Status != job.StatusCompleted {
		return cli.NewCommandError("export", fmt.Errorf("job %s %s: %s", j.ID, j.Status, j.Error))
	}
	if exportFlags.out != "" {
		if err := copyExport(cmd, app, j); err != nil {
			return cli.NewCommandError("export", err)
		}
	}
	if j.TransferStatus == job.TransferFailed {
		return cli.NewCommandError("export", fmt.Errorf("job %s completed but %s transfer failed: %s", j.ID, j.Method, j.TransferMessage))
	}

	if exportFlags.out == "-" {
		return nil
	}
	return render(cmd.OutOrStdout(), jobTable([]*job.Job{j}))
}

// copyExport copies a finished job's file to --out.
func copyExport(cmd *cobra.Command, app *cli.App, j *job.Job) error {
	path, err := app.Manager.FilePath(j)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer src.Close()

	var dst io.Writer = cmd.OutOrStdout()
	if exportFlags.out != "-" {
		f, err := os.Create(exportFlags.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportFlags.out, err)
		}
		defer f.Close()
		dst = f
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy export file: %w", err)
	}
	return nil
}

// jobTable renders jobs for text and CSV output; JSON output gets the jobs.
func jobTable(jobs []*job.Job) *cli.Table {
	t := &cli.Table{
		Header: []string{"ID", "TYPE", "FORMAT", "METHOD", "STATUS", "ROWS", "SKIPPED", "PROGRESS", "TRANSFER", "FILE", "CREATED"},
		Raw:    jobs,
	}
	for _, j := range jobs {
		t.Rows = append(t.Rows, []string{
			j.ID,
			string(j.RecordType),
			j.FormatKey,
			string(j.Method),
			string(j.Status),
			fmt.Sprint(j.RowsWritten),
			fmt.Sprint(j.Skipped),
			fmt.Sprintf("%.0f%%", j.Progress()*100),
			string(j.TransferStatus),
			j.FileName,
			j.CreatedAt.Format(time.RFC3339),
		})
	}
	return t
}
