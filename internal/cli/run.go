package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/inviting/executor"
)

var (
	runTarget    string
	runPreflight bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Invite every pending candidate into the target group",
	RunE:  runInvite,
}

func init() {
	runCmd.Flags().StringVar(&runTarget, "target", "", "group to invite into (@name, t.me link or peer id)")
	runCmd.Flags().BoolVar(&runPreflight, "preflight", false, "check and join with every session before the run")
	_ = runCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(runCmd)
}

func runInvite(cmd *cobra.Command, args []string) error {
	ctx, app, closeFn := openInviter()
	defer closeFn()

	summary, err := app.Run(ctx, runTarget, runPreflight)
	if summary != nil {
		printSummary(summary)
	}
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		slog.Info("Run interrupted, progress is saved")
		return nil
	default:
		slog.Error("Run stopped", "error", err)
		return err
	}
}

var summaryStatuses = []domain.LedgerStatus{
	domain.LedgerStatusOK,
	domain.LedgerStatusAlready,
	domain.LedgerStatusPrivacy,
	domain.LedgerStatusInvalid,
	domain.LedgerStatusSkip,
	domain.LedgerStatusForbidden,
	domain.LedgerStatusFloodWait,
	domain.LedgerStatusPeerFlood,
	domain.LedgerStatusFailed,
	domain.LedgerStatusStop,
}

func printSummary(s *executor.Summary) {
	fmt.Printf("run %s on %s: ok=%d skip=%d fail=%d dispatched=%d\n",
		s.RunID, s.TargetKey, s.OK, s.Skip, s.Fail, s.Dispatched)
	if s.Halted {
		fmt.Printf("halted: %s\n", s.HaltReason)
	}
	if len(s.PerActor) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprint(w, "ACTOR")
	for _, st := range summaryStatuses {
		_, _ = fmt.Fprintf(w, "\t%s", st)
	}
	_, _ = fmt.Fprintln(w)
	for _, actor := range s.Actors() {
		_, _ = fmt.Fprint(w, actor)
		for _, st := range summaryStatuses {
			_, _ = fmt.Fprintf(w, "\t%d", s.PerActor[actor][st])
		}
		_, _ = fmt.Fprintln(w)
	}
	_ = w.Flush()
}
