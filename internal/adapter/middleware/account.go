package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderAccountAddress = "Ax-Account-Address"

	accountContextKey = "account"
)

var reAccount = regexp.MustCompile(`^0x[a-f0-9]{1,64}$`)

// ValidAccount reports whether s is a 0x-prefixed lowercase hex address.
func ValidAccount(s string) bool { return reAccount.MatchString(s) }

// RequireAccount reads the connected account from Ax-Account-Address and
// stores it on the context.
func RequireAccount() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			addr := strings.TrimSpace(c.Request().Header.Get(HeaderAccountAddress))
			if addr == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing " + HeaderAccountAddress})
			}
			if !ValidAccount(addr) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid " + HeaderAccountAddress})
			}
			c.Set(accountContextKey, addr)
			return next(c)
		}
	}
}

// Account returns the address stored by RequireAccount.
func Account(c echo.Context) string {
	s, _ := c.Get(accountContextKey).(string)
	return s
}
