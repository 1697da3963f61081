// Package middleware holds the echo middleware of the account API.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/educapi/account-service/internal/core/domain"
)

const tokenKey = "token"

// BearerToken requires a non-empty Authorization header and stores its raw
// value for the handlers. Verification of the token itself is left to the
// account service, which also strips the optional "Bearer " prefix.
func BearerToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return domain.ErrInvalidToken
			}
			c.Set(tokenKey, authHeader)
			return next(c)
		}
	}
}

// Token returns the raw Authorization value stored by BearerToken.
func Token(c echo.Context) string {
	token, _ := c.Get(tokenKey).(string)
	return token
}
