// Package auth resolves the calling user for marketplace routes.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
)

// Config selects how the actor is established. With an empty Secret the
// service sits behind a gateway that already sets the actor header.
type Config struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// Middleware verifies HS256 bearer tokens and exposes their subject as the
// actor header, replacing whatever the client sent.
func Middleware(cfg Config, logger *zap.Logger) gin.HandlerFunc {
	if cfg.Secret == "" {
		return func(c *gin.Context) { c.Next() }
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(cfg.Secret)

	return func(c *gin.Context) {
		c.Request.Header.Del(httputil.ActorHeader)

		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			// Routes that need an actor reject the request through httputil.ActorID
			c.Next()
			return
		}

		userID, err := subject(parser, key, raw)
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err))
			httputil.RespondError(c, logger, apperrors.Wrap(apperrors.CodeForbidden, "invalid bearer token", err))
			c.Abort()
			return
		}
		c.Request.Header.Set(httputil.ActorHeader, userID.String())
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func subject(parser *jwt.Parser, key []byte, raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject %q is not a user id", claims.Subject)
	}
	return id, nil
}
