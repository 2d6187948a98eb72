package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var pruneTarget string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop finished and excluded candidates from the input files",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().StringVar(&pruneTarget, "target", "", "group whose ledger decides what is finished")
	_ = pruneCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx, app, closeFn := openInviter()
	defer closeFn()

	report, err := app.Prune(ctx, pruneTarget)
	if err != nil {
		slog.Error("Failed to prune candidates", "error", err)
		return err
	}
	fmt.Printf("removed %d, kept %d\n", report.Removed, report.Kept)
	for _, b := range report.Backups {
		fmt.Printf("backup: %s\n", b)
	}
	return nil
}
