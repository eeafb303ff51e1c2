package grpc

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptor(t *testing.T) {
	validToken := "test-token-123"
	interceptor := AuthInterceptor(validToken)

	tests := []struct {
		name           string
		ctx            context.Context
		handlerCalled  bool
		expectedCode   codes.Code
		expectedErrMsg string
	}{
		{
			name: "Valid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", validToken),
			),
			handlerCalled:  true,
			expectedCode:   codes.OK,
			expectedErrMsg: "",
		},
		{
			name: "Bearer Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "Bearer "+validToken),
			),
			handlerCalled:  true,
			expectedCode:   codes.OK,
			expectedErrMsg: "",
		},
		{
			name: "Invalid Token",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("authorization", "wrong-token"),
			),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "invalid token",
		},
		{
			name:           "Missing Token",
			ctx:            context.Background(),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing metadata",
		},
		{
			name: "Missing Authorization Header",
			ctx: metadata.NewIncomingContext(
				context.Background(),
				metadata.Pairs("other-header", "value"),
			),
			handlerCalled:  false,
			expectedCode:   codes.Unauthenticated,
			expectedErrMsg: "missing authorization header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				handlerCalled = true
				return "success", nil
			}

			info := &grpc.UnaryServerInfo{
				FullMethod: FullMethod(MethodGetOrder),
			}

			resp, err := interceptor(tt.ctx, "test-request", info, handler)

			assert.Equal(t, tt.handlerCalled, handlerCalled, "handler called status mismatch")

			if tt.expectedCode == codes.OK {
				assert.NoError(t, err)
				assert.Equal(t, "success", resp)
			} else {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok, "error should be a gRPC status")
				assert.Equal(t, tt.expectedCode, st.Code())
				assert.Contains(t, st.Message(), tt.expectedErrMsg)
			}
		})
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	interceptor := LoggingInterceptor(logger)
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodCancelOrder)}

	tests := []struct {
		name      string
		handler   grpc.UnaryHandler
		wantLevel string
		wantCode  string
	}{
		{
			name: "Success",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return "ok", nil
			},
			wantLevel: "level=INFO",
			wantCode:  "code=OK",
		},
		{
			name: "Client Error",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, status.Error(codes.NotFound, "standing order not found")
			},
			wantLevel: "level=WARN",
			wantCode:  "code=NotFound",
		},
		{
			name: "Server Error",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, status.Error(codes.Internal, "persistence failure")
			},
			wantLevel: "level=ERROR",
			wantCode:  "code=Internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			_, _ = interceptor(context.Background(), "req", info, tt.handler)

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, tt.wantCode)
			assert.Contains(t, out, "method=/standingorders.v1.StandingOrderService/CancelOrder")
			assert.Contains(t, out, "duration_ms=")
		})
	}
}

func TestRateLimitInterceptor(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	interceptor := RateLimitInterceptor(limiter, FullMethod(MethodExecuteDueNow))
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	trigger := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodExecuteDueNow)}
	other := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodGetOrder)}

	for i := 0; i < 2; i++ {
		_, err := interceptor(context.Background(), "req", trigger, handler)
		assert.NoError(t, err)
	}

	_, err := interceptor(context.Background(), "req", trigger, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Unlimited methods are unaffected
	for i := 0; i < 5; i++ {
		_, err := interceptor(context.Background(), "req", other, handler)
		assert.NoError(t, err)
	}
}

func TestPerMinute(t *testing.T) {
	limiter := PerMinute(6)

	assert.Equal(t, 6, limiter.Burst())
	assert.InDelta(t, 0.1, float64(limiter.Limit()), 1e-9)
}
