package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/export/job"
)

var jobsFlags struct {
	recordType string
	statuses   []string
	limit      int
	method     string
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage export jobs",
	Long: `Inspect and manage export jobs in the configured job store.

Subcommands:
  list      - List jobs, newest first
  get       - Show one job
  delete    - Delete a job and its file, cancelling it if still running
  transfer  - Deliver a completed job's file

Examples:
  courier jobs list --type orders --status failed
  courier jobs get 5f0c...
  courier jobs transfer 5f0c... --method email`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List export jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		f := job.Filter{Limit: jobsFlags.limit}
		if jobsFlags.recordType != "" {
			t, err := parseRecordType(jobsFlags.recordType)
			if err != nil {
				return err
			}
			f.RecordType = t
		}
		for _, s := range jobsFlags.statuses {
			f.Statuses = append(f.Statuses, job.Status(strings.ToLower(strings.TrimSpace(s))))
		}

		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		jobs, err := app.Manager.ListJobs(ctx, f)
		if err != nil {
			return cli.NewCommandError("jobs list", err)
		}
		return render(cmd.OutOrStdout(), jobTable(jobs))
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one export job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		j, err := app.Manager.GetJob(ctx, args[0])
		if err != nil {
			return cli.NewCommandError("jobs get", err)
		}
		return render(cmd.OutOrStdout(), jobTable([]*job.Job{j}))
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete an export job and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Manager.DeleteJob(ctx, args[0]); err != nil {
			return cli.NewCommandError("jobs delete", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Job %s deleted\n", args[0])
		return nil
	},
}

var jobsTransferCmd = &cobra.Command{
	Use:   "transfer <job-id>",
	Short: "Deliver a completed job's file",
	Long: `Deliver the file of a completed job. Without --method the job's own
delivery method is used. One attempt is made; the outcome is recorded on the
job's transfer status.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := ctxOrBackground(cmd)
		app, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		j, err := app.Manager.Transfer(ctx, args[0], job.Method(jobsFlags.method))
		if err != nil {
			return cli.NewCommandError("jobs transfer", err)
		}
		return render(cmd.OutOrStdout(), jobTable([]*job.Job{j}))
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsDeleteCmd, jobsTransferCmd)

	jobsListCmd.Flags().StringVarP(&jobsFlags.recordType, "type", "t", "", "filter by record type")
	jobsListCmd.Flags().StringSliceVar(&jobsFlags.statuses, "status", nil, "filter by status: queued, processing, completed, failed")
	jobsListCmd.Flags().IntVar(&jobsFlags.limit, "limit", 50, "maximum number of jobs")

	jobsTransferCmd.Flags().StringVarP(&jobsFlags.method, "method", "m", "", "delivery method: email, http_post, ftp, ftps, sftp")
}
