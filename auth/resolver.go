package auth

import (
	"context"
	"fmt"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"log/slog"
	"strings"
)

// JWTResolver resolves a bearer token into the identity of the connecting user.
// The first role of the token becomes the role of the connection.
type JWTResolver struct {
	log    *slog.Logger
	tokens *TokenManager
}

func NewJWTResolver(log *slog.Logger, tokens *TokenManager) *JWTResolver {
	return &JWTResolver{log: log, tokens: tokens}
}

func (r *JWTResolver) Resolve(ctx context.Context, credential string) (chat.Identity, error) {
	if err := ctx.Err(); err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %w", errors.ErrIdentity, err)
	}
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return chat.Identity{}, fmt.Errorf("%w: credential is missing", errors.ErrIdentity)
	}
	claims, err := r.tokens.ValidateToken(credential)
	if err != nil {
		r.log.Debug("Token rejected", "error", err)
		return chat.Identity{}, fmt.Errorf("%w: %w", errors.ErrIdentity, err)
	}
	if !chat.ValidUserID(claims.UserID) {
		return chat.Identity{}, fmt.Errorf("%w: invalid user id %q", errors.ErrIdentity, claims.UserID)
	}
	identity := chat.Identity{UserID: claims.UserID}
	if len(claims.Roles) > 0 {
		identity.Role = claims.Roles[0]
	}
	return identity, nil
}
