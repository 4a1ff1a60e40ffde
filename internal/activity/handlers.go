package activity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/auth"
	"myautowhiz-backend/pkg/utils"
)

// HandleListActivity returns the caller's activity log
func HandleListActivity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := utils.QueryInt(c, "limit", 20, 1, 100)
		offset := utils.QueryInt(c, "offset", 0, 0, 0)

		entries, total, err := List(c.Request.Context(), db, auth.UserID(c), limit, offset)
		if err != nil {
			utils.RespondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"activity": entries,
			"total":    total,
			"hasMore":  int64(offset+limit) < total,
		})
	}
}
