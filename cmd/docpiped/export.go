package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportDepartment string
	exportOut        string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export summaries to an XLSX workbook",
	Example: `  docpiped export --out summaries.xlsx
  docpiped export --department procurement --out procurement.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportDepartment, "department", "", "limit the export to one department (default: all)")
	exportCmd.Flags().StringVar(&exportOut, "out", "summaries.xlsx", "output file path")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.exporter.ExportSummariesXLSX(ctx, exportDepartment)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", exportOut, len(data))
	return nil
}
