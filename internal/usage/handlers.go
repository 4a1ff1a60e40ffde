package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"myautowhiz-backend/internal/auth"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves the usage endpoint.
type Handler struct {
	resolver *Resolver
}

// NewHandler creates a usage Handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// HandleGetUsage returns the caller's monthly analysis allowance
func (h *Handler) HandleGetUsage(c *gin.Context) {
	summary, err := h.resolver.Summarize(c.Request.Context(), auth.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": summary})
}
