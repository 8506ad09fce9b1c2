package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims, выдаваемых сервисом аутентификации.
const (
	jwtClaimModeratorID = "moderator_id"
	jwtClaimUsername    = "username"
)

func GetModeratorIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(moderatorContextKey).(jwt.MapClaims)
	if !ok {
		return 0, errors.New("moderator claims not found in context or invalid type")
	}

	idClaim, ok := claims[jwtClaimModeratorID]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim in token", jwtClaimModeratorID)
	}

	idFloat, ok := idClaim.(float64)
	if !ok {
		return 0, fmt.Errorf("invalid type for '%s' claim: expected float64, got %T", jwtClaimModeratorID, idClaim)
	}
	id := int(idFloat)
	if id <= 0 {
		return 0, fmt.Errorf("invalid moderator ID value in '%s' claim: %d", jwtClaimModeratorID, id)
	}
	return id, nil
}

func GetModeratorUsernameFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(moderatorContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("moderator claims not found in context or invalid type")
	}

	usernameClaim, ok := claims[jwtClaimUsername]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimUsername)
	}
	username, ok := usernameClaim.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimUsername, usernameClaim)
	}
	return username, nil
}
