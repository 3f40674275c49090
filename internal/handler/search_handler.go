package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xamle/civic-api/internal/service"
	"github.com/xamle/civic-api/pkg/response"
)

// SearchHandler exposes full-text search over the published register.
type SearchHandler struct {
	search *service.SearchService
}

// NewSearchHandler constructs SearchHandler.
func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search godoc
// @Summary Search published policies
// @Tags Search
// @Produce json
// @Param q query string true "Search query"
// @Param theme query string false "Filter by theme"
// @Param status query string false "Filter by status"
// @Param region query string false "Filter by region"
// @Param limit query int false "Maximum hits"
// @Success 200 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	req := service.SearchRequest{
		Query:  strings.TrimSpace(c.Query("q")),
		Theme:  c.Query("theme"),
		Status: c.Query("status"),
		Region: c.Query("region"),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.Limit = limit
	}

	result, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"degraded": result.Degraded}
	response.JSON(c, http.StatusOK, result, nil, meta)
}
