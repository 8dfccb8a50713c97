package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
)

func TestVerifier(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		configured string
		headers    map[string]string
		want       int
	}{
		{"matching credential", "s3cret", map[string]string{VerifierHeader: "s3cret"}, http.StatusOK},
		{"user actor without credential", "s3cret", map[string]string{httputil.ActorHeader: uuid.NewString()}, http.StatusForbidden},
		{"anonymous", "s3cret", nil, http.StatusForbidden},
		{"wrong credential", "s3cret", map[string]string{VerifierHeader: "guess"}, http.StatusForbidden},
		{"not configured", "", map[string]string{VerifierHeader: ""}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/results", Verifier(tt.configured, zap.NewNop()), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/results", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
