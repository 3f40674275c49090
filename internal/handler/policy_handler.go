package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xamle/civic-api/internal/service"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/response"
)

// PolicyHandler exposes policy endpoints.
type PolicyHandler struct {
	policies *service.PolicyService
}

// NewPolicyHandler constructs PolicyHandler.
func NewPolicyHandler(policies *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// List godoc
// @Summary List policies
// @Tags Policies
// @Produce json
// @Param theme query string false "Filter by theme"
// @Param status query string false "Filter by status"
// @Param ministryId query string false "Filter by ministry"
// @Param region query string false "Filter by region"
// @Param search query string false "Search title and description"
// @Param includeUnlisted query bool false "Include non-published records (staff only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /policies [get]
func (h *PolicyHandler) List(c *gin.Context) {
	var req service.PolicyListRequest
	req.Theme = c.Query("theme")
	req.Status = c.Query("status")
	req.MinistryID = c.Query("ministryId")
	req.Region = c.Query("region")
	req.Search = strings.TrimSpace(c.Query("search"))
	req.IncludeUnlisted = c.Query("includeUnlisted") == "true"
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		req.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		req.To = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = size
	}

	policies, pagination, err := h.policies.List(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policies, pagination)
}

// Get godoc
// @Summary Get policy by slug or id
// @Tags Policies
// @Produce json
// @Param id path string true "Policy slug or ID"
// @Success 200 {object} response.Envelope
// @Router /policies/{id} [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	policy, err := h.policies.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Create godoc
// @Summary Create policy
// @Tags Policies
// @Accept json
// @Produce json
// @Param payload body service.CreatePolicyRequest true "Policy payload"
// @Success 201 {object} response.Envelope
// @Router /policies [post]
func (h *PolicyHandler) Create(c *gin.Context) {
	var req service.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policies.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, policy)
}

// Update godoc
// @Summary Update policy content
// @Tags Policies
// @Accept json
// @Produce json
// @Param id path string true "Policy ID"
// @Param payload body service.UpdatePolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Router /policies/{id} [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	var req service.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policies.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// ChangeStatus godoc
// @Summary Change policy delivery status
// @Tags Policies
// @Accept json
// @Produce json
// @Param id path string true "Policy ID"
// @Param payload body service.ChangeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /policies/{id}/status [patch]
func (h *PolicyHandler) ChangeStatus(c *gin.Context) {
	var req service.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	policy, err := h.policies.ChangeStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Publish godoc
// @Summary Publish policy
// @Tags Policies
// @Produce json
// @Param id path string true "Policy ID"
// @Success 200 {object} response.Envelope
// @Router /policies/{id}/publish [post]
func (h *PolicyHandler) Publish(c *gin.Context) {
	policy, err := h.policies.Publish(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// History godoc
// @Summary Get policy status timeline
// @Tags Policies
// @Produce json
// @Param id path string true "Policy slug or ID"
// @Success 200 {object} response.Envelope
// @Router /policies/{id}/history [get]
func (h *PolicyHandler) History(c *gin.Context) {
	history, err := h.policies.History(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// GlobalStats godoc
// @Summary Get aggregate policy statistics
// @Tags Policies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *PolicyHandler) GlobalStats(c *gin.Context) {
	stats, err := h.policies.GlobalStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Reindex godoc
// @Summary Rebuild the search index from the published register
// @Tags Policies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/search/reindex [post]
func (h *PolicyHandler) Reindex(c *gin.Context) {
	indexed, err := h.policies.Reindex(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"indexed": indexed}, nil)
}
