package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xamle/civic-api/internal/service"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/response"
)

// MinistryHandler exposes ministry endpoints.
type MinistryHandler struct {
	ministries *service.MinistryService
}

// NewMinistryHandler constructs MinistryHandler.
func NewMinistryHandler(ministries *service.MinistryService) *MinistryHandler {
	return &MinistryHandler{ministries: ministries}
}

// List godoc
// @Summary List ministries
// @Tags Ministries
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ministries [get]
func (h *MinistryHandler) List(c *gin.Context) {
	ministries, err := h.ministries.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ministries, nil)
}

// Get godoc
// @Summary Get ministry by slug or id
// @Tags Ministries
// @Produce json
// @Param id path string true "Ministry slug or ID"
// @Success 200 {object} response.Envelope
// @Router /ministries/{id} [get]
func (h *MinistryHandler) Get(c *gin.Context) {
	ministry, err := h.ministries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ministry, nil)
}

// Create godoc
// @Summary Create ministry
// @Tags Ministries
// @Accept json
// @Produce json
// @Param payload body service.MinistryRequest true "Ministry payload"
// @Success 201 {object} response.Envelope
// @Router /ministries [post]
func (h *MinistryHandler) Create(c *gin.Context) {
	var req service.MinistryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ministry, err := h.ministries.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ministry)
}

// Update godoc
// @Summary Update ministry
// @Tags Ministries
// @Accept json
// @Produce json
// @Param id path string true "Ministry ID"
// @Param payload body service.MinistryRequest true "Ministry payload"
// @Success 200 {object} response.Envelope
// @Router /ministries/{id} [put]
func (h *MinistryHandler) Update(c *gin.Context) {
	var req service.MinistryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ministry, err := h.ministries.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ministry, nil)
}

// Ranking godoc
// @Summary Rank ministries by delivery
// @Tags Ministries
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ministries/ranking [get]
func (h *MinistryHandler) Ranking(c *gin.Context) {
	rankings, err := h.ministries.Ranking(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, nil)
}
