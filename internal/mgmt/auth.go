package mgmt

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Auth modes.
const (
	AuthNone   = "none"
	AuthAPIKey = "api-key"
	AuthJWT    = "jwt"
)

// AuthConfig holds authentication configuration for the management API.
type AuthConfig struct {
	Mode      string
	APIKey    string
	JWTSecret string
}

// NewAuthMiddleware returns a Fiber middleware that validates the
// Authorization header. Probe endpoints and metrics are always open;
// they carry no user data.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Mode == AuthNone {
			return c.Next()
		}

		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		switch cfg.Mode {
		case AuthAPIKey:
			if cfg.APIKey != "" && token == cfg.APIKey {
				return c.Next()
			}
		case AuthJWT:
			if validJWT(token, cfg.JWTSecret) {
				return c.Next()
			}
		}

		logger.Warn().
			Str("path", path).
			Str("method", c.Method()).
			Msg("unauthorized request")

		return problemResponse(c, fiber.StatusUnauthorized,
			"invalid_credentials", "Unauthorized",
			"Invalid credentials")
	}
}

func validJWT(token, secret string) bool {
	if secret == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return false
	}
	return parsed.Valid
}
