package policy

import (
	"testing"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	tests := []struct {
		name      string
		outcome   domain.Outcome
		status    domain.LedgerStatus
		session   SessionAction
		candidate CandidateAction
		excludeAs string
		tally     Tally
	}{
		{"success", domain.Succeeded(), domain.LedgerStatusOK, SessionSucceeded, CandidateDone, "", TallyOK},
		{"already member", domain.Failed(domain.OutcomeAlreadyMember, ""), domain.LedgerStatusAlready, SessionNone, CandidateTerminal, "", TallySkip},
		{"privacy", domain.Failed(domain.OutcomePrivacyRestricted, "USER_PRIVACY_RESTRICTED"), domain.LedgerStatusPrivacy, SessionNone, CandidateExclude, ReasonPrivacy, TallySkip},
		{"not mutual", domain.Failed(domain.OutcomeNotMutualContact, ""), domain.LedgerStatusSkip, SessionNone, CandidateExclude, ReasonNotMutual, TallySkip},
		{"too many channels", domain.Failed(domain.OutcomeTooManyChannels, ""), domain.LedgerStatusSkip, SessionNone, CandidateExclude, ReasonTooManyChannels, TallySkip},
		{"kicked", domain.Failed(domain.OutcomeUserKicked, ""), domain.LedgerStatusSkip, SessionNone, CandidateExclude, ReasonKicked, TallySkip},
		{"blocked by user", domain.Failed(domain.OutcomeUserBlocked, ""), domain.LedgerStatusSkip, SessionNone, CandidateExclude, ReasonBlocked, TallySkip},
		{"invalid", domain.Failed(domain.OutcomeInvalidUser, ""), domain.LedgerStatusInvalid, SessionNone, CandidateExclude, ReasonInvalid, TallySkip},
		{"missing hash", domain.Failed(domain.OutcomeMissingAccessHash, ""), domain.LedgerStatusSkip, SessionNone, CandidateExclude, ReasonUnresolvable, TallySkip},
		{"write forbidden", domain.Failed(domain.OutcomeWriteForbidden, ""), domain.LedgerStatusForbidden, SessionBlock, CandidateRetry, "", TallyFail},
		{"flood wait", domain.FloodWait(30*time.Second, ""), domain.LedgerStatusFloodWait, SessionBlock, CandidateRetry, "", TallyFail},
		{"peer flood", domain.Failed(domain.OutcomePeerFlood, ""), domain.LedgerStatusPeerFlood, SessionFreeze, CandidateRetry, "", TallyFail},
		{"network", domain.Failed(domain.OutcomeNetwork, "connection reset"), domain.LedgerStatusFailed, SessionBlock, CandidateRetry, "", TallyFail},
		{"admin required", domain.Failed(domain.OutcomeAdminRequired, ""), domain.LedgerStatusStop, SessionNone, CandidateHalt, "", TallyFail},
		{"unknown", domain.Failed(domain.OutcomeUnknown, "RANDOM_ERROR"), domain.LedgerStatusFailed, SessionFail, CandidateRetry, "", TallyFail},
		{"out of range kind", domain.Outcome{Kind: domain.OutcomeKind(999)}, domain.LedgerStatusFailed, SessionFail, CandidateRetry, "", TallyFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.outcome)
			if d.Status != tt.status {
				t.Errorf("Status = %s, want %s", d.Status, tt.status)
			}
			if d.Session != tt.session {
				t.Errorf("Session = %d, want %d", d.Session, tt.session)
			}
			if d.Candidate != tt.candidate {
				t.Errorf("Candidate = %d, want %d", d.Candidate, tt.candidate)
			}
			if d.ExcludeReason != tt.excludeAs {
				t.Errorf("ExcludeReason = %q, want %q", d.ExcludeReason, tt.excludeAs)
			}
			if d.Tally != tt.tally {
				t.Errorf("Tally = %s, want %s", d.Tally, tt.tally)
			}
		})
	}
}

func TestClassify_Durations(t *testing.T) {
	cfg := DefaultConfig()
	c := NewClassifier(cfg)

	short := c.Classify(domain.FloodWait(30*time.Second, ""))
	if short.For != 90*time.Second || short.RotationTrigger || !short.Penalize {
		t.Errorf("short flood wait decision = %+v", short)
	}

	long := c.Classify(domain.FloodWait(120*time.Second, ""))
	if long.For != 180*time.Second || !long.RotationTrigger {
		t.Errorf("long flood wait decision = %+v", long)
	}

	if d := c.Classify(domain.Failed(domain.OutcomePeerFlood, "")); d.For != 24*time.Hour {
		t.Errorf("peer flood freeze = %v, want 24h", d.For)
	}
	if d := c.Classify(domain.Failed(domain.OutcomeWriteForbidden, "")); d.For != 7*24*time.Hour {
		t.Errorf("forbidden block = %v, want 7 days", d.For)
	}
	if d := c.Classify(domain.Failed(domain.OutcomeNetwork, "")); d.For != time.Minute {
		t.Errorf("network block = %v, want 60s", d.For)
	}
}

func TestClassify_OnlyAdminHalts(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	for k := domain.OutcomeUnknown; k <= domain.OutcomeAdminRequired; k++ {
		d := c.Classify(domain.Outcome{Kind: k, Wait: time.Second})
		if (d.Candidate == CandidateHalt) != (k == domain.OutcomeAdminRequired) {
			t.Errorf("%s: halt = %v", k, d.Candidate == CandidateHalt)
		}
		if d.Candidate == CandidateExclude && d.Status == domain.LedgerStatusFailed {
			t.Errorf("%s: failed outcomes must never exclude", k)
		}
	}
}
