package vehicles

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myautowhiz-backend/internal/auth"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves /vehicles.
type Handler struct {
	store *Store
}

// NewHandler creates a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func vehicleID(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Query("id")
}

// HandleGetVehicles returns one vehicle when an id is given, otherwise a page
func (h *Handler) HandleGetVehicles(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	if id := vehicleID(c); id != "" {
		v, err := h.store.Get(ctx, id, userID)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"vehicle": v})
		return
	}

	page, err := h.store.List(ctx, userID,
		utils.QueryInt(c, "limit", 50, 1, 100),
		utils.QueryInt(c, "offset", 0, 0, 0))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// HandleCreateVehicle saves a vehicle for the caller
func (h *Handler) HandleCreateVehicle(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body").WithDetails(err.Error()))
		return
	}

	v, err := h.store.Create(c.Request.Context(), auth.UserID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vehicle": v})
}

// HandleUpdateVehicle edits a saved vehicle
func (h *Handler) HandleUpdateVehicle(c *gin.Context) {
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body").WithDetails(err.Error()))
		return
	}

	v, err := h.store.Update(c.Request.Context(), vehicleID(c), auth.UserID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": v})
}

// HandleDeleteVehicle removes a saved vehicle
func (h *Handler) HandleDeleteVehicle(c *gin.Context) {
	id := vehicleID(c)
	if id == "" {
		utils.RespondError(c, apperrors.Validation("vehicle id is required"))
		return
	}
	if err := h.store.Delete(c.Request.Context(), id, auth.UserID(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vehicle removed"})
}
