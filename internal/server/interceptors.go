package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// healthServicePrefix prefixes the full method names of grpc.health.v1.
const healthServicePrefix = "/grpc.health.v1.Health/"

// LoggingInterceptor logs every unary call with its status code and
// duration. Caller mistakes log at Warn, server failures at Error.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
			level = slog.LevelError
		default:
			level = slog.LevelWarn
		}
		attrs := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		logger.Log(ctx, level, "rpc", attrs...)
		return resp, err
	}
}

// RecoveryInterceptor turns a handler panic into codes.Internal and logs
// the stack.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("rpc panic",
					"method", info.FullMethod,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

var (
	errMissingAuth   = errors.New("missing authorization header")
	errInvalidScheme = errors.New("invalid authorization scheme")
	errInvalidToken  = errors.New("invalid token")
)

// checkBearer validates an Authorization header value against token.
func checkBearer(header, token string) error {
	if header == "" {
		return errMissingAuth
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errInvalidScheme
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return errInvalidToken
	}
	return nil
}

// AuthInterceptor requires "authorization: Bearer <token>" metadata on every
// call except the health service. An empty token disables the check.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if token == "" || strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		var header string
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
		if err := checkBearer(header, token); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// AuthMiddleware is the HTTP counterpart of AuthInterceptor; GET /v1/health
// is exempt.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if err := checkBearer(r.Header.Get("Authorization"), token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
