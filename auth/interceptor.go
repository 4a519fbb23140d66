package auth

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// AdminInterceptor only lets through callers whose token carries adminRole.
func AdminInterceptor(log *slog.Logger, tokens *TokenManager, adminRole string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "metadata is missing")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
		}

		// Expecting the standard "Bearer <token>" format
		claims, err := tokens.ValidateToken(strings.TrimPrefix(values[0], "Bearer "))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		if !slices.ContainsFunc(claims.Roles, func(role string) bool { return strings.EqualFold(role, adminRole) }) {
			log.Warn("Admin call refused", "user_id", claims.UserID, "method", info.FullMethod)
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}

		ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, RolesKey, claims.Roles)
		return handler(ctx, req)
	}
}
