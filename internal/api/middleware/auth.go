package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
)

const subjectKey = "auth_subject"

// jwksMethods are the asymmetric algorithms accepted from a JWKS provider.
var jwksMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// JWTAuth validates bearer tokens against a JWKS endpoint or a shared HS256 secret.
type JWTAuth struct {
	keyfunc jwt.Keyfunc
	methods []string
	issuer  string
	aud     string
}

// NewJWTAuth builds the validator. JWKS wins when both sources are configured.
func NewJWTAuth(ctx context.Context, cfg config.AuthConfig) (*JWTAuth, error) {
	auth := &JWTAuth{issuer: cfg.Issuer, aud: cfg.Audience}

	switch {
	case cfg.JWKSURL != "":
		k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("create jwks keyfunc: %w", err)
		}
		auth.keyfunc = k.Keyfunc
		auth.methods = jwksMethods
	case cfg.Secret != "":
		secret := []byte(cfg.Secret)
		auth.keyfunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		auth.methods = []string{"HS256"}
	default:
		return nil, fmt.Errorf("auth requires AUTH_JWKS_URL or AUTH_JWT_SECRET")
	}

	return auth, nil
}

// Middleware rejects requests without a valid bearer token with 401.
func (a *JWTAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		opts := []jwt.ParserOption{
			jwt.WithValidMethods(a.methods),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30 * time.Second),
		}
		if a.issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.issuer))
		}
		if a.aud != "" {
			opts = append(opts, jwt.WithAudience(a.aud))
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, a.keyfunc, opts...)
		if err != nil || !token.Valid {
			log.Debug().Err(err).Str("ip", c.ClientIP()).Msg("auth: token rejected")
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// Subject returns the authenticated subject, empty when auth is off.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
