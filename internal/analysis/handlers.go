package analysis

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myautowhiz-backend/internal/auth"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves the analysis routes.
type Handler struct {
	service *Service
}

// NewHandler creates a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	VIN         string                 `json:"vin" binding:"required"`
	Mileage     *int                   `json:"mileage"`
	AskingPrice *float64               `json:"askingPrice"`
	Options     models.AnalysisOptions `json:"options"`
	Notes       string                 `json:"notes"`
	Tags        []string               `json:"tags"`
}

type updateRequest struct {
	Notes       *string   `json:"notes"`
	Tags        *[]string `json:"tags"`
	Starred     *bool     `json:"starred"`
	Mileage     *int      `json:"mileage"`
	AskingPrice *float64  `json:"askingPrice"`
}

type statusRequest struct {
	Status       string   `json:"status" binding:"required"`
	OverallScore *float64 `json:"overallScore"`
	Error        string   `json:"error"`
}

func idFrom(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Query("id")
}

// HandleCreateAnalysis creates a pending analysis after the quota check
func (h *Handler) HandleCreateAnalysis(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body").WithDetails(err.Error()))
		return
	}

	record, err := h.service.Create(c.Request.Context(), auth.UserID(c), CreateInput{
		VIN:         req.VIN,
		Mileage:     req.Mileage,
		AskingPrice: req.AskingPrice,
		Options:     req.Options,
		Notes:       req.Notes,
		Tags:        req.Tags,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"analysis": record})
}

// HandleGetAnalyses returns one analysis when an id is given, otherwise a page
func (h *Handler) HandleGetAnalyses(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	if id := idFrom(c); id != "" {
		record, err := h.service.Get(ctx, id, userID)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"analysis": record})
		return
	}

	page, err := h.service.List(ctx, userID, ListOptions{
		Status: c.Query("status"),
		Limit:  utils.QueryInt(c, "limit", 20, 1, 100),
		Offset: utils.QueryInt(c, "offset", 0, 0, 0),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// HandleUpdateAnalysis applies a whitelisted partial update
func (h *Handler) HandleUpdateAnalysis(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body").WithDetails(err.Error()))
		return
	}

	record, err := h.service.Update(c.Request.Context(), idFrom(c), auth.UserID(c), UpdateInput{
		Notes:       req.Notes,
		Tags:        req.Tags,
		Starred:     req.Starred,
		Mileage:     req.Mileage,
		AskingPrice: req.AskingPrice,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": record})
}

// HandleDeleteAnalysis deletes an analysis owned by the caller
func (h *Handler) HandleDeleteAnalysis(c *gin.Context) {
	id := idFrom(c)
	if id == "" {
		utils.RespondError(c, apperrors.Validation("analysis id is required"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, auth.UserID(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted successfully"})
}

// HandleSetStatus is called by the analysis worker to advance an analysis
func (h *Handler) HandleSetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body").WithDetails(err.Error()))
		return
	}

	record, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), StatusUpdate{
		Status:       req.Status,
		OverallScore: req.OverallScore,
		Reason:       req.Error,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": record})
}
