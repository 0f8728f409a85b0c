package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/colonyledger/core/internal/ports"
)

// callerMiddleware resolves the caller's identity from either a bearer
// capability token or the operator API key and places it on the request
// context. What the caller may do is decided inside the services, not
// here; this only establishes who is asking.
func (s *Server) callerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey := c.Request().Header.Get("X-API-Key"); apiKey != "" {
				caller, ok := s.gate.VerifyOperatorKey(apiKey)
				if !ok {
					s.logger.LogSecurityEvent("invalid_api_key", "", c.RealIP(), nil)
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
				}

				ctx := ports.WithCaller(c.Request().Context(), caller)
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			caller, err := s.gate.ParseToken(tokenString)
			if err != nil {
				s.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			ctx := ports.WithCaller(c.Request().Context(), caller)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
