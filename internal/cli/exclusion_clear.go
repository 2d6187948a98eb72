package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var exclusionClearCmd = &cobra.Command{
	Use:   "exclusion-clear [candidate]",
	Short: "Remove a user id or @username from the global skip-list",
	Args:  cobra.ExactArgs(1),
	RunE:  runExclusionClear,
}

func init() {
	rootCmd.AddCommand(exclusionClearCmd)
}

func runExclusionClear(cmd *cobra.Command, args []string) error {
	ctx, app, closeFn := openInviter()
	defer closeFn()

	key, err := app.ClearExclusion(ctx, args[0])
	if err != nil {
		slog.Error("Failed to clear exclusion", "candidate", args[0], "error", err)
		return err
	}
	fmt.Printf("Removed %s from the exclusion list\n", key)
	return nil
}
