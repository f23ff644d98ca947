package adminapi

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/storage/model"
)

// APIKeyHeader carries the shared admin secret.
const APIKeyHeader = "X-Admin-Api-Key"

// authMiddleware enforces authentication for admin API routes. A request
// passes with either the shared API key header or, when user management
// is enabled, HTTP Basic credentials of an admin user.
func authMiddleware(conf Config, users model.UsersStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if conf.APIKey != "" {
			provided := c.Get(APIKeyHeader)
			if provided != "" &&
				subtle.ConstantTimeCompare([]byte(provided), []byte(conf.APIKey)) == 1 {
				return c.Next()
			}
		}

		if conf.UsersEnabled && users != nil {
			username, password, ok := parseBasicAuth(c)
			if ok {
				if _, err := users.Authenticate(username, password); err == nil {
					return c.Next()
				}
			}
		}

		c.Set("WWW-Authenticate", "Basic realm=admin")
		return c.Status(fiber.StatusUnauthorized).JSON(api.ErrorUnauthorized("missing or invalid admin credentials"))
	}
}

// parseBasicAuth extracts Basic auth credentials from request headers
func parseBasicAuth(c *fiber.Ctx) (username, password string, ok bool) {
	auth := string(c.Request().Header.Peek("Authorization"))
	if auth == "" {
		return "", "", false
	}
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	creds := string(b)
	i := strings.IndexByte(creds, ':')
	if i < 0 {
		return "", "", false
	}
	return creds[:i], creds[i+1:], true
}
