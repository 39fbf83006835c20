package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docpipe/internal/pipeline"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair drift between the semantic index and the summary rows",
	Long: `Scans every point in the semantic index against summarized_contents.
Index points without a matching row (leftovers from failed inserts) are
deleted; rows without an index point are reported so they can be re-indexed.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := pipeline.NewReconciler(a.index, a.summaries, a.logger).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("index points: %d\nrows: %d\norphan points deleted: %d\nrows without points: %d\n",
		rep.IndexPoints, rep.Rows, len(rep.OrphanPoints), len(rep.UnindexedRows))
	for _, id := range rep.UnindexedRows {
		fmt.Printf("unindexed row: %s\n", id)
	}
	return nil
}
