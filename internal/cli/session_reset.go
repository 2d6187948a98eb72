package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var sessionResetCmd = &cobra.Command{
	Use:   "session-reset [actor_id]",
	Short: "Clear the ban, cool-downs and quota windows of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionReset,
}

func init() {
	rootCmd.AddCommand(sessionResetCmd)
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	ctx, app, closeFn := openInviter()
	defer closeFn()

	if _, err := app.ResetSession(ctx, args[0]); err != nil {
		slog.Error("Failed to reset session", "actor", args[0], "error", err)
		return err
	}
	fmt.Printf("Successfully reset session %s\n", args[0])
	return nil
}
