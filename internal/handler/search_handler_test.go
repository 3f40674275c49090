package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	"github.com/xamle/civic-api/internal/service"
)

type stubFallback struct{ policies []models.Policy }

func (s *stubFallback) SearchFallback(ctx context.Context, query string, limit int) ([]models.Policy, error) {
	return s.policies, nil
}

func newSearchRouter(svc *service.SearchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/search", NewSearchHandler(svc).Search)
	return router
}

func TestSearchHandlerDegradedFlag(t *testing.T) {
	fallback := &stubFallback{policies: []models.Policy{{ID: "pol-1", Slug: "water-program", Title: "Water Program"}}}
	svc := service.NewSearchService(nil, fallback, zap.NewNop())
	router := newSearchRouter(svc)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/search?q=water", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"degraded":true`)
	assert.Contains(t, recorder.Body.String(), "water-program")
}

func TestSearchHandlerMissingQuery(t *testing.T) {
	svc := service.NewSearchService(nil, &stubFallback{}, zap.NewNop())
	router := newSearchRouter(svc)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
