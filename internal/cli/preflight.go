package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var preflightTarget string

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check that every session can reach and invite into the target",
	RunE:  runPreflightCheck,
}

func init() {
	preflightCmd.Flags().StringVar(&preflightTarget, "target", "", "group to check (@name, t.me link or peer id)")
	_ = preflightCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(preflightCmd)
}

func runPreflightCheck(cmd *cobra.Command, args []string) error {
	ctx, app, closeFn := openInviter()
	defer closeFn()

	report, err := app.Preflight(ctx, preflightTarget)
	if err != nil {
		slog.Error("Preflight failed", "error", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ACTOR\tSTATUS\tDETAIL")
	for _, r := range report.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.ActorID, r.Status, r.Detail)
	}
	_ = w.Flush()
	fmt.Printf("usable: %d of %d\n", len(report.Usable()), len(report.Results))
	return nil
}
