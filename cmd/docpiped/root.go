package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var sqlitePath string

var rootCmd = &cobra.Command{
	Use:   "docpiped",
	Short: "Document-to-knowledge pipeline daemon",
	Long: `docpiped ingests scanned PDFs, recognizes each page, classifies topics
per department, summarizes them against a semantic index and persists the
results with full provenance (document, page, topic, summary).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "",
		"use a SQLite database at this path instead of DB_URL (':memory:'-style paths work for smoke runs)")
}
