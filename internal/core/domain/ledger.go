package domain

import "time"

// LedgerStatus is the outcome recorded for a (target, candidate) pair.
type LedgerStatus string

const (
	LedgerStatusOK        LedgerStatus = "ok"
	LedgerStatusAlready   LedgerStatus = "already"
	LedgerStatusPrivacy   LedgerStatus = "privacy"
	LedgerStatusInvalid   LedgerStatus = "invalid"
	LedgerStatusSkip      LedgerStatus = "skip"
	LedgerStatusForbidden LedgerStatus = "forbidden"
	LedgerStatusFloodWait LedgerStatus = "floodwait"
	LedgerStatusPeerFlood LedgerStatus = "peerflood"
	LedgerStatusFailed    LedgerStatus = "failed"
	LedgerStatusStop      LedgerStatus = "stop"
)

// Terminal reports whether the pair must never be dispatched again for the target.
func (s LedgerStatus) Terminal() bool {
	switch s {
	case LedgerStatusOK, LedgerStatusAlready, LedgerStatusPrivacy, LedgerStatusInvalid:
		return true
	}
	return false
}

// LedgerEntry is the current outcome for one (target, candidate) pair.
type LedgerEntry struct {
	TargetKey    string
	CandidateKey string
	Status       LedgerStatus
	Reason       string
	UserID       int64  // 0 when unknown
	Username     string // empty when unknown
	RunID        string
	UpdatedAt    time.Time
}
