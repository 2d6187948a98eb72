// Package gateway is the dispatch boundary to the session bridge that holds
// the authenticated actor identities. Every provider failure is translated
// here into a domain.Outcome; no transport error escapes AddMember.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds bridge connection settings.
type Config struct {
	Transport string        `yaml:"transport"` // http, grpc
	Endpoint  string        `yaml:"endpoint"`
	Timeout   time.Duration `yaml:"timeout"`
	APIKey    string        `yaml:"api_key"`
}

// TargetHandle is a target resolved inside one actor's authorization context.
type TargetHandle struct {
	Ref        string
	PeerID     int64
	AccessHash int64
	Title      string
	Member     bool // the actor already belongs to the target
}

// FallbackHandle addresses the target by its literal reference when
// resolution fails; the bridge resolves it again on dispatch.
func FallbackHandle(t domain.Target) TargetHandle {
	return TargetHandle{Ref: t.Raw, PeerID: t.PeerID}
}

// Gateway performs actor-scoped operations against the messaging service.
type Gateway interface {
	// Resolve looks the target up with the actor's credentials.
	Resolve(ctx context.Context, actorID string, target domain.Target) (TargetHandle, error)

	// Join makes the actor a member of the target.
	Join(ctx context.Context, actorID string, target TargetHandle) error

	// AddMember invites the candidate and reports the classified result.
	AddMember(ctx context.Context, actorID string, target TargetHandle, c domain.Candidate) domain.Outcome

	Close() error
}

// New builds the gateway for the configured transport.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	switch cfg.Transport {
	case "", TransportHTTP:
		return NewHTTPGateway(cfg), nil
	case TransportGRPC:
		return NewGRPCGateway(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported gateway transport %q", cfg.Transport)
	}
}

// Error is a provider failure returned by Resolve or Join.
type Error struct {
	Code    string
	Outcome domain.Outcome
}

func (e *Error) Error() string {
	if e.Code == "" {
		return "gateway: " + e.Outcome.String()
	}
	return fmt.Sprintf("gateway: %s (%s)", e.Code, e.Outcome.Kind)
}

// Unauthorized reports whether the actor's credentials are no longer valid.
func (e *Error) Unauthorized() bool {
	return isAuthCode(e.Code)
}

// CannotJoin reports whether the target refuses new members from this actor.
func (e *Error) CannotJoin() bool {
	return isJoinCode(e.Code)
}

func newError(code string, wait time.Duration) *Error {
	return &Error{Code: code, Outcome: Translate(code, wait)}
}

func candidatePayload(c domain.Candidate) map[string]any {
	user := map[string]any{"raw": c.Raw}
	if c.UserID != 0 {
		user["id"] = c.UserID
	}
	if c.HasHash {
		user["access_hash"] = c.AccessHash
	}
	if c.Username != "" {
		user["username"] = c.Username
	}
	return user
}

func targetPayload(t TargetHandle) map[string]any {
	target := map[string]any{"ref": t.Ref}
	if t.PeerID != 0 {
		target["peer_id"] = t.PeerID
	}
	if t.AccessHash != 0 {
		target["access_hash"] = t.AccessHash
	}
	return target
}
