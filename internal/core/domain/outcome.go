package domain

import (
	"fmt"
	"time"
)

// OutcomeKind is the closed set of results a dispatch can produce.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSucceeded
	OutcomeAlreadyMember
	OutcomePrivacyRestricted
	OutcomeNotMutualContact
	OutcomeTooManyChannels
	OutcomeUserKicked
	OutcomeUserBlocked
	OutcomeInvalidUser
	OutcomeWriteForbidden
	OutcomeFloodWait
	OutcomePeerFlood
	OutcomeMissingAccessHash
	OutcomeNetwork
	OutcomeAdminRequired
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeUnknown:           "unknown",
	OutcomeSucceeded:         "succeeded",
	OutcomeAlreadyMember:     "already_member",
	OutcomePrivacyRestricted: "privacy_restricted",
	OutcomeNotMutualContact:  "not_mutual_contact",
	OutcomeTooManyChannels:   "too_many_channels",
	OutcomeUserKicked:        "user_kicked",
	OutcomeUserBlocked:       "user_blocked",
	OutcomeInvalidUser:       "invalid_user",
	OutcomeWriteForbidden:    "write_forbidden",
	OutcomeFloodWait:         "flood_wait",
	OutcomePeerFlood:         "peer_flood",
	OutcomeMissingAccessHash: "missing_access_hash",
	OutcomeNetwork:           "network",
	OutcomeAdminRequired:     "admin_required",
}

func (k OutcomeKind) String() string {
	if s, ok := outcomeNames[k]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is what the dispatch boundary hands to the orchestration logic.
// Wait is only meaningful for OutcomeFloodWait. Detail keeps the provider's
// message for the ledger reason and logs.
type Outcome struct {
	Kind   OutcomeKind
	Wait   time.Duration
	Detail string
}

func Succeeded() Outcome {
	return Outcome{Kind: OutcomeSucceeded}
}

func FloodWait(wait time.Duration, detail string) Outcome {
	return Outcome{Kind: OutcomeFloodWait, Wait: wait, Detail: detail}
}

func Failed(kind OutcomeKind, detail string) Outcome {
	return Outcome{Kind: kind, Detail: detail}
}

func (o Outcome) String() string {
	if o.Kind == OutcomeFloodWait {
		return fmt.Sprintf("%s(%s)", o.Kind, o.Wait)
	}
	if o.Detail != "" {
		return fmt.Sprintf("%s: %s", o.Kind, o.Detail)
	}
	return o.Kind.String()
}
