package executor

import (
	"sort"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/inviting/policy"
)

// Summary is the result of one run.
type Summary struct {
	RunID     string
	TargetKey string

	OK   int
	Skip int
	Fail int

	// Dispatched counts add-member calls, including retries.
	Dispatched int

	// PerActor counts ledger statuses produced by each actor's dispatches.
	PerActor map[string]map[domain.LedgerStatus]int

	Halted     bool
	HaltReason string

	StartedAt  time.Time
	FinishedAt time.Time
}

func newSummary(runID, targetKey string, now time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		TargetKey: targetKey,
		PerActor:  make(map[string]map[domain.LedgerStatus]int),
		StartedAt: now,
	}
}

func (s *Summary) tally(t policy.Tally) {
	switch t {
	case policy.TallyOK:
		s.OK++
	case policy.TallySkip:
		s.Skip++
	default:
		s.Fail++
	}
}

func (s *Summary) dispatched(actorID string, status domain.LedgerStatus) {
	s.Dispatched++
	counts, ok := s.PerActor[actorID]
	if !ok {
		counts = make(map[domain.LedgerStatus]int)
		s.PerActor[actorID] = counts
	}
	counts[status]++
}

// Actors returns the actors that dispatched during the run, sorted.
func (s *Summary) Actors() []string {
	out := make([]string, 0, len(s.PerActor))
	for id := range s.PerActor {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Processed is the number of candidates that reached a final state.
func (s *Summary) Processed() int {
	return s.OK + s.Skip + s.Fail
}
