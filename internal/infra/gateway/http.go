package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

// HTTPGateway talks JSON to a bridge that exposes one endpoint per operation
// under /v1/sessions/{actor}/.
type HTTPGateway struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway creates a new HTTP bridge client.
func NewHTTPGateway(cfg Config) *HTTPGateway {
	return &HTTPGateway{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type resolveResponse struct {
	Ref        string `json:"ref"`
	PeerID     int64  `json:"peer_id"`
	AccessHash int64  `json:"access_hash"`
	Title      string `json:"title"`
	Member     bool   `json:"member"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Wait    int    `json:"wait_seconds"`
}

// Resolve implements Gateway.
func (g *HTTPGateway) Resolve(ctx context.Context, actorID string, target domain.Target) (TargetHandle, error) {
	var resp resolveResponse
	body := map[string]any{"target": target.Raw}
	if target.Username != "" {
		body["username"] = target.Username
	}
	if target.PeerID != 0 {
		body["peer_id"] = target.PeerID
	}
	if err := g.call(ctx, actorID, "resolve", body, &resp); err != nil {
		return TargetHandle{}, err
	}
	if resp.Ref == "" {
		resp.Ref = target.Raw
	}
	return TargetHandle(resp), nil
}

// Join implements Gateway.
func (g *HTTPGateway) Join(ctx context.Context, actorID string, target TargetHandle) error {
	return g.call(ctx, actorID, "join", map[string]any{"target": targetPayload(target)}, nil)
}

// AddMember implements Gateway.
func (g *HTTPGateway) AddMember(ctx context.Context, actorID string, target TargetHandle, c domain.Candidate) domain.Outcome {
	body := map[string]any{
		"target": targetPayload(target),
		"user":   candidatePayload(c),
	}
	err := g.call(ctx, actorID, "invite", body, nil)
	if err == nil {
		return domain.Succeeded()
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Outcome
	}
	return domain.Failed(domain.OutcomeUnknown, err.Error())
}

// Close releases idle connections.
func (g *HTTPGateway) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}

func (g *HTTPGateway) call(ctx context.Context, actorID, op string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/sessions/%s/%s", g.endpoint, url.PathEscape(actorID), op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Code: "NETWORK_ERROR", Outcome: domain.Failed(domain.OutcomeNetwork, err.Error())}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Code: "NETWORK_ERROR", Outcome: domain.Failed(domain.OutcomeNetwork, err.Error())}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		if wait == 0 {
			wait = time.Duration(e.Wait) * time.Second
		}
		code := e.Error
		if code == "" {
			code = "FLOOD_WAIT"
		}
		return newError(code, wait)
	}

	if resp.StatusCode/100 != 2 {
		var e errorResponse
		if err := json.Unmarshal(data, &e); err != nil || e.Error == "" {
			if resp.StatusCode >= 500 {
				return &Error{Code: "RPC_CALL_FAIL", Outcome: domain.Failed(domain.OutcomeNetwork, fmt.Sprintf("http %d", resp.StatusCode))}
			}
			return &Error{Outcome: domain.Failed(domain.OutcomeUnknown, fmt.Sprintf("http %d: %s", resp.StatusCode, string(data)))}
		}
		return newError(e.Error, time.Duration(e.Wait)*time.Second)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
