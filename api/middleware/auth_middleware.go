package middleware

import (
	"net/http"
	"strings"

	"github.com/NienCongChua/lms-forum-id-sub000/internal/entity"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthMiddleware struct {
	JWT *utils.JWTManager
}

// RequireAuth rejects every failure mode with the same opaque 401 so a
// caller cannot distinguish a missing header from a revoked or malformed
// token.
func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.JWT == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		claims, err := m.JWT.ParseAccessToken(bearerToken(c.Request()))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		userID, uidErr := uuid.Parse(claims.UserID)
		sessionID, sidErr := uuid.Parse(claims.SessionID)
		if uidErr != nil || sidErr != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		SetAuthContext(c, userID, entity.UserRole(claims.Role), sessionID)
		return next(c)
	}
}

func bearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
