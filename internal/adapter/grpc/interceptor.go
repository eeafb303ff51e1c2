package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the authorization token from request metadata.
// A "Bearer " prefix is accepted.
// If the token is missing or invalid, it returns status.Unauthenticated.
// If valid, it calls the handler with the original context.
func AuthInterceptor(validToken string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		if strings.TrimPrefix(authHeaders[0], "Bearer ") != validToken {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every RPC with its method, status code and duration
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start).Milliseconds()
		code := status.Code(err)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "RPC ok",
				"method", info.FullMethod,
				"code", code.String(),
				"duration_ms", duration,
			)
		case code == codes.Internal || code == codes.Unknown:
			logger.ErrorContext(ctx, "RPC error",
				"method", info.FullMethod,
				"code", code.String(),
				"error", err,
				"duration_ms", duration,
			)
		default:
			logger.WarnContext(ctx, "RPC error",
				"method", info.FullMethod,
				"code", code.String(),
				"error", status.Convert(err).Message(),
				"duration_ms", duration,
			)
		}

		return resp, err
	}
}

// RateLimitInterceptor rejects calls to the given methods with ResourceExhausted
// once limiter has no token left. Other methods pass through.
func RateLimitInterceptor(limiter *rate.Limiter, fullMethods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]struct{}, len(fullMethods))
	for _, m := range fullMethods {
		limited[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := limited[info.FullMethod]; ok && !limiter.Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "too many %s calls, retry later", info.FullMethod)
		}
		return handler(ctx, req)
	}
}

// PerMinute converts a per-minute budget into a limiter allowing bursts of that size
func PerMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}
