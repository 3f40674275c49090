package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xamle/civic-api/internal/service"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/response"
)

// ContributionHandler exposes contribution endpoints.
type ContributionHandler struct {
	contributions *service.ContributionService
}

// NewContributionHandler constructs ContributionHandler.
func NewContributionHandler(contributions *service.ContributionService) *ContributionHandler {
	return &ContributionHandler{contributions: contributions}
}

// List godoc
// @Summary List contributions
// @Tags Contributions
// @Produce json
// @Param policyId query string false "Filter by policy"
// @Param userId query string false "Filter by author"
// @Param status query string false "Filter by moderation status (staff only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contributions [get]
func (h *ContributionHandler) List(c *gin.Context) {
	var req service.ContributionListRequest
	req.PolicyID = c.Query("policyId")
	req.UserID = c.Query("userId")
	req.Status = c.Query("status")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = size
	}

	contributions, pagination, err := h.contributions.List(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contributions, pagination)
}

// Get godoc
// @Summary Get contribution detail
// @Tags Contributions
// @Produce json
// @Param id path string true "Contribution ID"
// @Success 200 {object} response.Envelope
// @Router /contributions/{id} [get]
func (h *ContributionHandler) Get(c *gin.Context) {
	contribution, err := h.contributions.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contribution, nil)
}

// Create godoc
// @Summary Submit a contribution
// @Tags Contributions
// @Accept multipart/form-data
// @Produce json
// @Param policy_id formData string true "Policy ID"
// @Param type formData string true "Contribution type"
// @Param content formData string true "Content"
// @Param region formData string false "Region"
// @Param file formData file false "Evidence file"
// @Success 201 {object} response.Envelope
// @Router /contributions [post]
func (h *ContributionHandler) Create(c *gin.Context) {
	req := service.CreateContributionRequest{
		PolicyID: c.PostForm("policy_id"),
		Type:     c.PostForm("type"),
		Content:  c.PostForm("content"),
	}
	if region := c.PostForm("region"); region != "" {
		req.Region = &region
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
			return
		}
		req.File = &service.ContributionFile{
			Name:     fileHeader.Filename,
			MimeType: fileHeader.Header.Get("Content-Type"),
			Data:     data,
		}
	}

	contribution, err := h.contributions.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contribution)
}

// Moderate godoc
// @Summary Moderate a pending contribution
// @Tags Contributions
// @Accept json
// @Produce json
// @Param id path string true "Contribution ID"
// @Param payload body service.ModerateContributionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /contributions/{id}/moderate [patch]
func (h *ContributionHandler) Moderate(c *gin.Context) {
	var req service.ModerateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contribution, err := h.contributions.Moderate(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contribution, nil)
}
