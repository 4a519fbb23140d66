package auth_test

import (
	"context"
	"gym-chat/auth"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const adminMethod = "/gymchat.admin.v1.AdminService/ExpirySweep"

func TestAdminInterceptor(t *testing.T) {
	// The handler returns the context it received so the injected identity can be inspected
	dummyHandler := func(ctx context.Context, req any) (any, error) {
		return ctx, nil
	}
	tokens := auth.NewTokenManager("interceptor-secret", "gym-app")
	interceptor := auth.AdminInterceptor(logs.GetLoggerFromLevel(slog.LevelDebug), tokens, "admin")
	info := &grpc.UnaryServerInfo{FullMethod: adminMethod}

	withToken := func(token string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	}

	t.Run("should fail when metadata is missing", func(t *testing.T) {
		req := require.New(t)
		_, err := interceptor(context.Background(), nil, info, dummyHandler)
		req.Equal(codes.Unauthenticated, status.Code(err))
	})

	t.Run("should fail when authorization is missing", func(t *testing.T) {
		req := require.New(t)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-other", "1"))
		_, err := interceptor(ctx, nil, info, dummyHandler)
		req.Equal(codes.Unauthenticated, status.Code(err))
	})

	t.Run("should fail with invalid token", func(t *testing.T) {
		req := require.New(t)
		_, err := interceptor(withToken("invalid-token-string"), nil, info, dummyHandler)
		req.Error(err)
		req.Contains(err.Error(), "invalid or expired token")
	})

	t.Run("should refuse a member token", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken("member-1", []string{"member"}, time.Hour)
		req.NoError(err)

		_, err = interceptor(withToken(token), nil, info, dummyHandler)
		req.Equal(codes.PermissionDenied, status.Code(err))
	})

	t.Run("should succeed and inject user_id when token is valid", func(t *testing.T) {
		req := require.New(t)
		roles := []string{"coach", "Admin"}
		token, err := tokens.GenerateToken("user-123", roles, time.Hour)
		req.NoError(err)

		resCtx, err := interceptor(withToken(token), nil, info, dummyHandler)
		req.NoError(err)

		resultCtx := resCtx.(context.Context)
		req.Equal("user-123", resultCtx.Value(auth.UserIDKey))
		req.Equal(roles, resultCtx.Value(auth.RolesKey))
	})
}
