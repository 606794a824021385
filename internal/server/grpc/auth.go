package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HealthPrefix is the method prefix of the standard health service.
const HealthPrefix = "/grpc.health.v1.Health/"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthUnary rejects calls without a valid bearer token. Methods starting with
// one of public skip the check.
func AuthUnary(v TokenVerifier, public ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if isPublic(info.FullMethod, public) {
			return next(ctx, req)
		}
		sub, err := subjectFromMD(ctx, v)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		return next(WithSubject(ctx, sub), req)
	}
}

// AuthStream is AuthUnary for streaming calls.
func AuthStream(v TokenVerifier, public ...string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if isPublic(info.FullMethod, public) {
			return next(srv, ss)
		}
		sub, err := subjectFromMD(ss.Context(), v)
		if err != nil {
			return status.Error(codes.Unauthenticated, "no auth")
		}
		return next(srv, &authedStream{ServerStream: ss, ctx: WithSubject(ss.Context(), sub)})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

func isPublic(method string, public []string) bool {
	for _, p := range public {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// subjectFromMD extracts "authorization: Bearer <JWT>" and verifies it.
func subjectFromMD(ctx context.Context, v TokenVerifier) (string, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", err
	}
	return v.Verify(tok)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
