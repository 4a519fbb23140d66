package server

import (
	"context"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/infrastructure/grpc/adminpb"
	"gym-chat/services"
	"log/slog"
	"strings"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AdminServer exposes the server-side operations to operators.
// Every call goes through auth.AdminInterceptor first.
type AdminServer struct {
	log *slog.Logger
	hub services.IHub
}

var _ adminpb.AdminServiceServer = (*AdminServer)(nil)

func NewAdminServer(log *slog.Logger, hub services.IHub) *AdminServer {
	return &AdminServer{log: log, hub: hub}
}

// BroadcastSystemNotification expects {title, body, category}.
func (s *AdminServer) BroadcastSystemNotification(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	title := stringField(req, "title")
	if title == "" {
		return nil, errors.MapToGRPCError(errors.Validation("title is required"))
	}
	delivered := s.hub.BroadcastSystemNotification(ctx, title, stringField(req, "body"), stringField(req, "category"))
	s.log.Info("System notification broadcast", "title", title, "delivered", delivered)
	return wrapperspb.Int64(int64(delivered)), nil
}

// PushToRole expects {role, payload}. The payload is forwarded as is.
func (s *AdminServer) PushToRole(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	role := stringField(req, "role")
	if role == "" {
		return nil, errors.MapToGRPCError(errors.Validation("role is required"))
	}
	var payload any
	if value, ok := req.GetFields()["payload"]; ok {
		payload = value.AsInterface()
	}
	delivered := s.hub.PushToRole(ctx, role, payload)
	return wrapperspb.Int64(int64(delivered)), nil
}

func (s *AdminServer) ExpirySweep(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	removed, err := s.hub.ExpirySweep(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.Int64(int64(removed)), nil
}

func (s *AdminServer) Presence(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	userID := req.GetValue()
	if !chat.ValidUserID(userID) {
		return nil, errors.MapToGRPCError(errors.Validation("invalid user id %q", userID))
	}
	return wrapperspb.Int64(int64(s.hub.Presence(userID))), nil
}

func (s *AdminServer) UnreadCount(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	userID := req.GetValue()
	if !chat.ValidUserID(userID) {
		return nil, errors.MapToGRPCError(errors.Validation("invalid user id %q", userID))
	}
	count, err := s.hub.UnreadCount(ctx, userID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.Int64(int64(count)), nil
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}
