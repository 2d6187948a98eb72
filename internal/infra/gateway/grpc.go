package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vietddude/inviter/internal/core/domain"
)

// ServiceName is the bridge's gRPC service. Requests and responses are
// google.protobuf.Struct messages so no generated stubs are needed.
const ServiceName = "inviter.gateway.v1.Gateway"

// ActorMetadataKey carries the actor id on every call.
const ActorMetadataKey = "x-actor-id"

// GRPCGateway talks to the bridge over gRPC.
type GRPCGateway struct {
	conn   grpc.ClientConnInterface
	closer func() error
	apiKey string
}

// NewGRPCGateway creates a client for the configured endpoint. TLS is used for
// https:// endpoints and port 443.
func NewGRPCGateway(ctx context.Context, cfg Config) (*GRPCGateway, error) {
	target := cfg.Endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(target, "https://") || strings.HasSuffix(target, ":443") {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &GRPCGateway{conn: conn, closer: conn.Close, apiKey: cfg.APIKey}, nil
}

// NewGRPCGatewayFromConn wraps an existing connection.
func NewGRPCGatewayFromConn(conn grpc.ClientConnInterface, apiKey string) *GRPCGateway {
	return &GRPCGateway{conn: conn, apiKey: apiKey}
}

// Resolve implements Gateway.
func (g *GRPCGateway) Resolve(ctx context.Context, actorID string, target domain.Target) (TargetHandle, error) {
	req := map[string]any{"target": target.Raw}
	if target.Username != "" {
		req["username"] = target.Username
	}
	if target.PeerID != 0 {
		req["peer_id"] = strconv.FormatInt(target.PeerID, 10)
	}

	resp, err := g.invoke(ctx, actorID, "Resolve", req)
	if err != nil {
		return TargetHandle{}, err
	}

	fields := resp.GetFields()
	h := TargetHandle{
		Ref:    fields["ref"].GetStringValue(),
		Title:  fields["title"].GetStringValue(),
		Member: fields["member"].GetBoolValue(),
	}
	h.PeerID = intField(fields["peer_id"])
	h.AccessHash = intField(fields["access_hash"])
	if h.Ref == "" {
		h.Ref = target.Raw
	}
	return h, nil
}

// Join implements Gateway.
func (g *GRPCGateway) Join(ctx context.Context, actorID string, target TargetHandle) error {
	_, err := g.invoke(ctx, actorID, "Join", map[string]any{"target": stringifyInts(targetPayload(target))})
	return err
}

// AddMember implements Gateway.
func (g *GRPCGateway) AddMember(ctx context.Context, actorID string, target TargetHandle, c domain.Candidate) domain.Outcome {
	req := map[string]any{
		"target": stringifyInts(targetPayload(target)),
		"user":   stringifyInts(candidatePayload(c)),
	}
	_, err := g.invoke(ctx, actorID, "AddMember", req)
	if err == nil {
		return domain.Succeeded()
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Outcome
	}
	return domain.Failed(domain.OutcomeUnknown, err.Error())
}

// Close closes the underlying connection when this gateway owns it.
func (g *GRPCGateway) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

func (g *GRPCGateway) invoke(ctx context.Context, actorID, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	md := metadata.Pairs(ActorMetadataKey, actorID)
	if g.apiKey != "" {
		md.Append("authorization", "Bearer "+g.apiKey)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fromStatus(err)
	}
	return out, nil
}

// fromStatus reads the provider error name from an ErrorInfo detail and the
// flood wait from a RetryInfo detail, falling back to the status code.
func fromStatus(err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return &Error{Code: "NETWORK_ERROR", Outcome: domain.Failed(domain.OutcomeNetwork, err.Error())}
	}

	var code string
	var retry *errdetails.RetryInfo
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			code = v.GetReason()
		case *errdetails.RetryInfo:
			retry = v
		}
	}
	wait := retry.GetRetryDelay().AsDuration()

	if code != "" {
		return newError(code, wait)
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return &Error{Code: "NETWORK_ERROR", Outcome: domain.Failed(domain.OutcomeNetwork, st.Message())}
	case codes.ResourceExhausted:
		return newError("FLOOD_WAIT", wait)
	case codes.Unauthenticated:
		return &Error{Code: "UNAUTHORIZED", Outcome: domain.Failed(domain.OutcomeUnknown, st.Message())}
	case codes.PermissionDenied:
		return newError("CHAT_WRITE_FORBIDDEN", 0)
	default:
		return &Error{Code: st.Code().String(), Outcome: domain.Failed(domain.OutcomeUnknown, st.Message())}
	}
}

// stringifyInts renders int64 fields as strings; Struct numbers are doubles
// and would truncate access hashes.
func stringifyInts(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if n, ok := v.(int64); ok {
			out[k] = strconv.FormatInt(n, 10)
			continue
		}
		out[k] = v
	}
	return out
}

func intField(v *structpb.Value) int64 {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, _ := strconv.ParseInt(k.StringValue, 10, 64)
		return n
	case *structpb.Value_NumberValue:
		return int64(k.NumberValue)
	}
	return 0
}
