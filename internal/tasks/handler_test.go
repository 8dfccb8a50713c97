package tasks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/httputil"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(f.svc, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doJSON(router *gin.Engine, method, path string, actor uuid.UUID, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != uuid.Nil {
		req.Header.Set(httputil.ActorHeader, actor.String())
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerCreateAndAccept(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	slotID := f.addSlot(t, f.provider, morning)

	w := doJSON(router, http.MethodPost, "/api/v1/tasks", f.client, gin.H{
		"title":      "Fix kitchen sink",
		"category":   "plumbing",
		"budget_min": 15000,
		"budget_max": 25000,
		"address":    "Cocody",
		"publish":    true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID                 uuid.UUID `json:"id"`
		Status             Status    `json:"status"`
		AllowedTransitions []Status  `json:"allowed_transitions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, StatusPosted, created.Status)
	assert.Equal(t, []Status{StatusApplications, StatusCancelled}, created.AllowedTransitions)

	w = doJSON(router, http.MethodPost, "/api/v1/tasks/"+created.ID.String()+"/accept", f.provider, gin.H{
		"date": "2025-07-20", "start_time": "09:00", "end_time": "11:00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, f.slot(t, slotID).IsBooked)

	w = doJSON(router, http.MethodPost, "/api/v1/tasks/"+created.ID.String()+"/accept", uuid.New(), gin.H{
		"date": "2025-07-20", "start_time": "09:00", "end_time": "11:00",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	var failure struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failure))
	assert.Equal(t, "INVALID_TRANSITION", failure.Code)
	assert.Equal(t, "applications", failure.Details["from"])
	assert.Equal(t, "You cannot accept a task that is already accepted.", failure.Message)
}

func TestHandlerSlotErrors(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	task := f.postTask(t)

	w := doJSON(router, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/accept", f.provider, gin.H{
		"date": "2025-07-20", "start_time": "09:00", "end_time": "11:00",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SLOT_UNAVAILABLE")

	w = doJSON(router, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/accept", f.provider, gin.H{
		"date": "2025-07-20", "start_time": "11:00", "end_time": "09:00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerRequiresActor(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	task := f.postTask(t)

	w := doJSON(router, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/cancel", uuid.Nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/tasks/not-a-uuid", f.client, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), f.client, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
