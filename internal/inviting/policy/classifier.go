package policy

import (
	"github.com/vietddude/inviter/internal/core/domain"
)

// Classifier turns an Outcome into a Decision.
type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify is total over OutcomeKind; kinds it does not know are treated as Unknown.
func (c *Classifier) Classify(o domain.Outcome) Decision {
	switch o.Kind {
	case domain.OutcomeSucceeded:
		return Decision{
			Status:    domain.LedgerStatusOK,
			Session:   SessionSucceeded,
			Candidate: CandidateDone,
			Tally:     TallyOK,
		}

	case domain.OutcomeAlreadyMember:
		return Decision{
			Status:    domain.LedgerStatusAlready,
			Reason:    o.Detail,
			Candidate: CandidateTerminal,
			Tally:     TallySkip,
		}

	case domain.OutcomePrivacyRestricted:
		return exclude(domain.LedgerStatusPrivacy, ReasonPrivacy, o)

	case domain.OutcomeNotMutualContact:
		return exclude(domain.LedgerStatusSkip, ReasonNotMutual, o)
	case domain.OutcomeTooManyChannels:
		return exclude(domain.LedgerStatusSkip, ReasonTooManyChannels, o)
	case domain.OutcomeUserKicked:
		return exclude(domain.LedgerStatusSkip, ReasonKicked, o)
	case domain.OutcomeUserBlocked:
		return exclude(domain.LedgerStatusSkip, ReasonBlocked, o)

	case domain.OutcomeInvalidUser:
		return exclude(domain.LedgerStatusInvalid, ReasonInvalid, o)

	case domain.OutcomeMissingAccessHash:
		return exclude(domain.LedgerStatusSkip, ReasonUnresolvable, o)

	case domain.OutcomeWriteForbidden:
		return Decision{
			Status:    domain.LedgerStatusForbidden,
			Reason:    o.Detail,
			Session:   SessionBlock,
			For:       c.cfg.ForbiddenBlock,
			Candidate: CandidateRetry,
			Tally:     TallyFail,
		}

	case domain.OutcomeFloodWait:
		return Decision{
			Status:          domain.LedgerStatusFloodWait,
			Reason:          o.String(),
			Session:         SessionBlock,
			For:             o.Wait + c.cfg.FloodWaitBuffer,
			Candidate:       CandidateRetry,
			Tally:           TallyFail,
			RotationTrigger: o.Wait > c.cfg.SwitchOnFloodWait,
			Penalize:        true,
		}

	case domain.OutcomePeerFlood:
		return Decision{
			Status:    domain.LedgerStatusPeerFlood,
			Reason:    o.Detail,
			Session:   SessionFreeze,
			For:       c.cfg.PeerFloodFreeze,
			Candidate: CandidateRetry,
			Tally:     TallyFail,
			Penalize:  true,
		}

	case domain.OutcomeNetwork:
		return Decision{
			Status:    domain.LedgerStatusFailed,
			Reason:    o.Detail,
			Session:   SessionBlock,
			For:       c.cfg.NetworkBlock,
			Candidate: CandidateRetry,
			Tally:     TallyFail,
		}

	case domain.OutcomeAdminRequired:
		return Decision{
			Status:    domain.LedgerStatusStop,
			Reason:    o.Detail,
			Candidate: CandidateHalt,
			Tally:     TallyFail,
		}

	default:
		return Decision{
			Status:    domain.LedgerStatusFailed,
			Reason:    o.String(),
			Session:   SessionFail,
			Candidate: CandidateRetry,
			Tally:     TallyFail,
		}
	}
}

func exclude(status domain.LedgerStatus, reason string, o domain.Outcome) Decision {
	return Decision{
		Status:        status,
		Reason:        reasonOr(o.Detail, reason),
		Candidate:     CandidateExclude,
		ExcludeReason: reason,
		Tally:         TallySkip,
	}
}

func reasonOr(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
