package gateway

import (
	"testing"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		code     string
		wait     time.Duration
		kind     domain.OutcomeKind
		wantWait time.Duration
	}{
		{"USER_ALREADY_PARTICIPANT", 0, domain.OutcomeAlreadyMember, 0},
		{"USER_PRIVACY_RESTRICTED", 0, domain.OutcomePrivacyRestricted, 0},
		{"user_not_mutual_contact", 0, domain.OutcomeNotMutualContact, 0},
		{"USER_CHANNELS_TOO_MUCH", 0, domain.OutcomeTooManyChannels, 0},
		{"USER_KICKED", 0, domain.OutcomeUserKicked, 0},
		{"YOU_BLOCKED_USER", 0, domain.OutcomeUserBlocked, 0},
		{"USERNAME_NOT_OCCUPIED", 0, domain.OutcomeInvalidUser, 0},
		{"CHAT_WRITE_FORBIDDEN", 0, domain.OutcomeWriteForbidden, 0},
		{"FLOOD_WAIT_120", 0, domain.OutcomeFloodWait, 120 * time.Second},
		{"SLOWMODE_WAIT_7", time.Hour, domain.OutcomeFloodWait, 7 * time.Second},
		{"FLOOD_WAIT", 30 * time.Second, domain.OutcomeFloodWait, 30 * time.Second},
		{"PEER_FLOOD", 0, domain.OutcomePeerFlood, 0},
		{"INPUT_ENTITY_NOT_FOUND", 0, domain.OutcomeMissingAccessHash, 0},
		{"TIMEOUT", 0, domain.OutcomeNetwork, 0},
		{"CHAT_ADMIN_REQUIRED", 0, domain.OutcomeAdminRequired, 0},
		{"rpc error: CHAT_ADMIN_REQUIRED (caused by InviteToChannelRequest)", 0, domain.OutcomeAdminRequired, 0},
		{"SOMETHING_NEW", 0, domain.OutcomeUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := Translate(tt.code, tt.wait)
			if got.Kind != tt.kind {
				t.Errorf("Translate(%q).Kind = %v, want %v", tt.code, got.Kind, tt.kind)
			}
			if got.Wait != tt.wantWait {
				t.Errorf("Translate(%q).Wait = %v, want %v", tt.code, got.Wait, tt.wantWait)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	if !newError("AUTH_KEY_UNREGISTERED", 0).Unauthorized() {
		t.Error("AUTH_KEY_UNREGISTERED should be unauthorized")
	}
	if !newError("INVITE_HASH_EXPIRED", 0).CannotJoin() {
		t.Error("INVITE_HASH_EXPIRED should be a join refusal")
	}
	if e := newError("FLOOD_WAIT_5", 0); e.Unauthorized() || e.CannotJoin() {
		t.Error("flood wait misclassified")
	}
}
