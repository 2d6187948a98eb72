// Package policy maps dispatch outcomes to ledger statuses and the actions the
// executor applies to the actor and the candidate.
package policy

import (
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

// SessionAction is what happens to the dispatching actor.
type SessionAction int

const (
	SessionNone      SessionAction = iota
	SessionSucceeded               // ok++ and quota consumed
	SessionBlock                   // blocked_until = now + For, fail++
	SessionFreeze                  // frozen_until = now + For, fail++
	SessionFail                    // fail++
)

// CandidateAction is what happens to the candidate after the dispatch.
type CandidateAction int

const (
	CandidateDone     CandidateAction = iota // recorded, move on
	CandidateTerminal                        // terminal for this target only
	CandidateExclude                         // add to the global skip-list
	CandidateRetry                           // try again, bounded by the attempt cap
	CandidateHalt                            // stop the whole run
)

// Tally is the summary bucket a final candidate result falls into.
type Tally string

const (
	TallyOK   Tally = "ok"
	TallySkip Tally = "skip"
	TallyFail Tally = "fail"
)

// Reasons written to the exclusion list.
const (
	ReasonPrivacy         = "privacy"
	ReasonNotMutual       = "not_mutual_contact"
	ReasonTooManyChannels = "too_many_channels"
	ReasonKicked          = "user_kicked"
	ReasonBlocked         = "user_blocked"
	ReasonInvalid         = "invalid"
	ReasonUnresolvable    = "unresolvable"
)

// Decision is the full policy for one outcome.
type Decision struct {
	Status        domain.LedgerStatus
	Reason        string
	Session       SessionAction
	For           time.Duration
	Candidate     CandidateAction
	ExcludeReason string
	Tally         Tally

	// RotationTrigger marks a rate limit long enough to prefer another actor.
	RotationTrigger bool

	// Penalize floors the governor's adaptive delay.
	Penalize bool
}

// Config holds the policy durations.
type Config struct {
	SwitchOnFloodWait time.Duration // default: 60s
	FloodWaitBuffer   time.Duration // default: 60s
	PeerFloodFreeze   time.Duration // default: 24h
	ForbiddenBlock    time.Duration // default: 7 days
	NetworkBlock      time.Duration // default: 60s
}

// DefaultConfig returns the standard policy durations.
func DefaultConfig() Config {
	return Config{
		SwitchOnFloodWait: 60 * time.Second,
		FloodWaitBuffer:   60 * time.Second,
		PeerFloodFreeze:   24 * time.Hour,
		ForbiddenBlock:    7 * 24 * time.Hour,
		NetworkBlock:      60 * time.Second,
	}
}
