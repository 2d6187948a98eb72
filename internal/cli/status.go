package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/inviter/internal/core/domain"
)

var statusTarget string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted state of every session",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusTarget, "target", "", "also show ledger totals for this group")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, app, closeFn := openInviter()
	defer closeFn()

	states, err := app.Status(ctx)
	if err != nil {
		slog.Error("Failed to read sessions", "error", err)
		return err
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ACTOR\tREADY IN\tBANNED\tOK\tFAIL\tATTEMPTS\tHOUR\tDAY\tLAST INVITE")
	for _, s := range states {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.ActorID, readyIn(s, now), s.Banned, s.OK, s.Fail, s.Attempts,
			s.Hour.Count, s.Day.Count, formatTime(s.LastInviteAt))
	}
	_ = w.Flush()

	if statusTarget == "" {
		return nil
	}
	counts, err := app.LedgerCounts(ctx, statusTarget)
	if err != nil {
		slog.Error("Failed to read ledger", "error", err)
		return err
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, st := range []domain.LedgerStatus{
		domain.LedgerStatusOK, domain.LedgerStatusAlready, domain.LedgerStatusPrivacy,
		domain.LedgerStatusInvalid, domain.LedgerStatusSkip, domain.LedgerStatusForbidden,
		domain.LedgerStatusFloodWait, domain.LedgerStatusPeerFlood, domain.LedgerStatusFailed,
		domain.LedgerStatusStop,
	} {
		if n := counts[st]; n > 0 {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", st, n)
		}
	}
	return w.Flush()
}

func readyIn(s *domain.SessionState, now time.Time) string {
	if s.Banned {
		return "-"
	}
	if d := s.Readiness().Sub(now); d > 0 {
		return d.Round(time.Second).String()
	}
	return "now"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
