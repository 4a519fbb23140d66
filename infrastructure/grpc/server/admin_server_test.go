package server_test

import (
	"context"
	"gym-chat/auth"
	"gym-chat/errors"
	"gym-chat/infrastructure/grpc/adminpb"
	"gym-chat/infrastructure/grpc/client"
	"gym-chat/infrastructure/grpc/server"
	"gym-chat/mocks"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	testSecret = "admin-secret"
	testIssuer = "gym-app"
)

func startAdmin(t *testing.T, hub *mocks.MockIHub) (string, *auth.TokenManager) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	tokens := auth.NewTokenManager(testSecret, testIssuer)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(auth.AdminInterceptor(log, tokens, "admin")))
	adminpb.RegisterAdminServiceServer(grpcServer, server.NewAdminServer(log, hub))
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)
	return lis.Addr().String(), tokens
}

func dialAdmin(t *testing.T, addr string, tokens *auth.TokenManager, roles ...string) *client.AdminClient {
	token, err := tokens.GenerateToken("ops", roles, time.Minute)
	require.NoError(t, err)
	c, err := client.NewAdminClient(addr, token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAdminServer_Operations(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	hub := mocks.NewMockIHub(ctrl)
	addr, tokens := startAdmin(t, hub)
	admin := dialAdmin(t, addr, tokens, "admin")
	ctx := context.Background()

	hub.EXPECT().BroadcastSystemNotification(gomock.Any(), "Closed", "Pool maintenance", "info").Return(4)
	delivered, err := admin.BroadcastSystemNotification(ctx, "Closed", "Pool maintenance", "info")
	req.NoError(err)
	req.Equal(int64(4), delivered)

	hub.EXPECT().PushToRole(gomock.Any(), "coach", map[string]any{"slot": "18:00"}).Return(2)
	delivered, err = admin.PushToRole(ctx, "coach", map[string]any{"slot": "18:00"})
	req.NoError(err)
	req.Equal(int64(2), delivered)

	hub.EXPECT().ExpirySweep(gomock.Any()).Return(7, nil)
	removed, err := admin.ExpirySweep(ctx)
	req.NoError(err)
	req.Equal(int64(7), removed)

	hub.EXPECT().Presence("alice").Return(3)
	online, err := admin.Presence(ctx, "alice")
	req.NoError(err)
	req.Equal(int64(3), online)

	hub.EXPECT().UnreadCount(gomock.Any(), "bob").Return(5, nil)
	unread, err := admin.UnreadCount(ctx, "bob")
	req.NoError(err)
	req.Equal(int64(5), unread)
}

func TestAdminServer_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mocks.NewMockIHub(ctrl)
	addr, tokens := startAdmin(t, hub)
	ctx := context.Background()

	t.Run("member token is refused", func(t *testing.T) {
		member := dialAdmin(t, addr, tokens, "member")
		_, err := member.ExpirySweep(ctx)
		require.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("missing title is invalid", func(t *testing.T) {
		admin := dialAdmin(t, addr, tokens, "admin")
		_, err := admin.BroadcastSystemNotification(ctx, " ", "body", "info")
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("invalid user id is rejected before the hub", func(t *testing.T) {
		admin := dialAdmin(t, addr, tokens, "admin")
		_, err := admin.Presence(ctx, "not a user")
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("store failure maps to unavailable", func(t *testing.T) {
		admin := dialAdmin(t, addr, tokens, "admin")
		hub.EXPECT().UnreadCount(gomock.Any(), "bob").Return(0, errors.Persistence("unread count", context.DeadlineExceeded))
		_, err := admin.UnreadCount(ctx, "bob")
		require.Equal(t, codes.Unavailable, status.Code(err))
	})
}
