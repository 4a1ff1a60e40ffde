package vehicledata

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves the public VIN and recall routes.
type Handler struct {
	client *Client
}

// NewHandler creates a Handler.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// HandleDecodeVin decodes the VIN in the query string
func (h *Handler) HandleDecodeVin(c *gin.Context) {
	vin := c.Query("vin")
	if vin == "" {
		utils.RespondError(c, apperrors.Validation("vin query parameter is required"))
		return
	}

	vehicle, err := h.client.DecodeVin(c.Request.Context(), vin)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": vehicle})
}

// HandleBatchDecode decodes up to 50 VINs
func (h *Handler) HandleBatchDecode(c *gin.Context) {
	var req struct {
		VINs []string `json:"vins" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, apperrors.Validation("body must be {\"vins\": [...]}").WithDetails(err.Error()))
		return
	}

	result, err := h.client.BatchDecodeVins(c.Request.Context(), req.VINs)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleGetRecalls lists recalls by vin or by make/model/year
func (h *Handler) HandleGetRecalls(c *gin.Context) {
	result, err := h.client.GetRecalls(c.Request.Context(), RecallQuery{
		VIN:   c.Query("vin"),
		Make:  c.Query("make"),
		Model: c.Query("model"),
		Year:  c.Query("year"),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
