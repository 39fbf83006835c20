package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processEmail string

var processCmd = &cobra.Command{
	Use:   "process <file.pdf> [more.pdf ...]",
	Short: "Run the full pipeline over local PDFs, synchronously",
	Args:  cobra.MinimumNArgs(1),
	Example: `  docpiped process --user clerk@metro.example minutes.pdf
  docpiped --sqlite ./docpipe.db process --user clerk@metro.example reports/*.pdf`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&processEmail, "user", "", "owner email for the created jobs (required)")
	_ = processCmd.MarkFlagRequired("user")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.index.EnsureCollection(ctx); err != nil {
		return err
	}

	svc := a.service(inlineQueue{orch: a.orchestrator})
	user, err := svc.UpsertUser(ctx, processEmail, "")
	if err != nil {
		return err
	}

	var failed int
	for _, path := range args {
		jobID, _, err := svc.AcceptDocument(ctx, path, user.ID)
		if err != nil {
			a.logger.Error("process.document.failed", "path", path, "error", err)
			failed++
			continue
		}
		status, err := svc.JobStatus(ctx, jobID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", path, jobID, status.State)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}
