package gateway

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

var waitCodeRe = regexp.MustCompile(`^(?:FLOOD_WAIT|FLOOD_PREMIUM_WAIT|SLOWMODE_WAIT)_(\d+)$`)

var codeOutcomes = map[string]domain.OutcomeKind{
	"USER_ALREADY_PARTICIPANT": domain.OutcomeAlreadyMember,

	"USER_PRIVACY_RESTRICTED": domain.OutcomePrivacyRestricted,

	"USER_NOT_MUTUAL_CONTACT": domain.OutcomeNotMutualContact,
	"USER_CHANNELS_TOO_MUCH":  domain.OutcomeTooManyChannels,
	"USER_KICKED":             domain.OutcomeUserKicked,
	"USER_BLOCKED":            domain.OutcomeUserBlocked,
	"YOU_BLOCKED_USER":        domain.OutcomeUserBlocked,

	"USER_ID_INVALID":        domain.OutcomeInvalidUser,
	"USERNAME_INVALID":       domain.OutcomeInvalidUser,
	"USERNAME_NOT_OCCUPIED":  domain.OutcomeInvalidUser,
	"PEER_ID_INVALID":        domain.OutcomeInvalidUser,
	"INPUT_USER_DEACTIVATED": domain.OutcomeInvalidUser,
	"USER_BOT":               domain.OutcomeInvalidUser,

	"CHAT_WRITE_FORBIDDEN": domain.OutcomeWriteForbidden,
	"CHAT_FORBIDDEN":       domain.OutcomeWriteForbidden,

	"FLOOD_WAIT":      domain.OutcomeFloodWait,
	"PEER_FLOOD":      domain.OutcomePeerFlood,
	"USER_RESTRICTED": domain.OutcomePeerFlood,

	"ACCESS_HASH_MISSING":    domain.OutcomeMissingAccessHash,
	"INPUT_ENTITY_NOT_FOUND": domain.OutcomeMissingAccessHash,

	"TIMEOUT":           domain.OutcomeNetwork,
	"RPC_CALL_FAIL":     domain.OutcomeNetwork,
	"CONNECTION_FAILED": domain.OutcomeNetwork,
	"NETWORK_ERROR":     domain.OutcomeNetwork,

	"CHAT_ADMIN_REQUIRED":        domain.OutcomeAdminRequired,
	"CHAT_ADMIN_INVITE_REQUIRED": domain.OutcomeAdminRequired,
}

var authCodes = map[string]bool{
	"AUTH_KEY_UNREGISTERED": true,
	"AUTH_KEY_INVALID":      true,
	"AUTH_KEY_DUPLICATED":   true,
	"SESSION_REVOKED":       true,
	"SESSION_EXPIRED":       true,
	"USER_DEACTIVATED":      true,
	"USER_DEACTIVATED_BAN":  true,
	"UNAUTHORIZED":          true,
}

var joinCodes = map[string]bool{
	"INVITE_HASH_EXPIRED":  true,
	"INVITE_HASH_INVALID":  true,
	"INVITE_REQUEST_SENT":  true,
	"CHANNEL_PRIVATE":      true,
	"CHANNELS_TOO_MUCH":    true,
	"CHANNEL_INVALID":      true,
	"USERS_TOO_MUCH":       true,
	"JOIN_REQUEST_PENDING": true,
}

// NormalizeCode upper-cases a provider error name and strips decoration
// such as "rpc error: " prefixes or trailing explanations in parentheses.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.Index(code, " ("); i > 0 {
		code = code[:i]
	}
	if i := strings.LastIndex(code, ": "); i >= 0 {
		code = code[i+2:]
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Translate maps a provider error name to an Outcome. wait supplies the
// flood wait when the name itself carries no duration.
func Translate(code string, wait time.Duration) domain.Outcome {
	name := NormalizeCode(code)

	if m := waitCodeRe.FindStringSubmatch(name); m != nil {
		secs, err := strconv.Atoi(m[1])
		if err == nil {
			return domain.FloodWait(time.Duration(secs)*time.Second, name)
		}
	}

	kind, ok := codeOutcomes[name]
	if !ok {
		return domain.Failed(domain.OutcomeUnknown, name)
	}
	if kind == domain.OutcomeFloodWait {
		return domain.FloodWait(wait, name)
	}
	return domain.Failed(kind, name)
}

func isAuthCode(code string) bool {
	return authCodes[NormalizeCode(code)]
}

func isJoinCode(code string) bool {
	return joinCodes[NormalizeCode(code)]
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
