package auth

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
)

// VerifierHeader carries the credential shared with the document verifier
const VerifierHeader = "X-Verifier-Token"

// Verifier admits only requests presenting the verifier credential. Users,
// including the one being verified, never hold it. An empty token refuses
// every request.
func Verifier(token string, logger *zap.Logger) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(VerifierHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			logger.Warn("Rejected verifier request",
				zap.String("path", c.FullPath()),
				zap.String("actor", c.GetHeader(httputil.ActorHeader)))
			httputil.RespondError(c, logger, apperrors.New(apperrors.CodeForbidden, "verifier credential required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
