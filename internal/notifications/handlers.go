package notifications

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"myautowhiz-backend/internal/auth"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/pkg/utils"
)

// Handler serves the notification routes.
type Handler struct {
	store *Store
}

// NewHandler creates a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// bulkRequest is accepted as a JSON body on PATCH and DELETE.
type bulkRequest struct {
	ID      string   `json:"id"`
	IDs     []string `json:"ids"`
	MarkAll bool     `json:"markAll"`
	All     bool     `json:"all"`
	Read    bool     `json:"read"`
}

func (r *bulkRequest) ids() []string {
	var out []string
	if r.ID != "" {
		out = append(out, r.ID)
	}
	for _, id := range r.IDs {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// bindBulk merges query flags with an optional JSON body.
func bindBulk(c *gin.Context) (*bulkRequest, error) {
	req := &bulkRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return nil, apperrors.Validation("invalid request body").WithDetails(err.Error())
		}
	}
	if id := c.Param("id"); id != "" {
		req.ID = id
	}
	if id := c.Query("id"); id != "" && req.ID == "" {
		req.ID = id
	}
	for _, raw := range append(c.QueryArray("ids"), c.QueryArray("ids[]")...) {
		req.IDs = append(req.IDs, strings.Split(raw, ",")...)
	}
	req.MarkAll = req.MarkAll || c.Query("markAll") == "true"
	req.All = req.All || c.Query("all") == "true"
	req.Read = req.Read || c.Query("read") == "true"
	return req, nil
}

// HandleListNotifications returns a page of the caller's notifications
func (h *Handler) HandleListNotifications(c *gin.Context) {
	page, err := h.store.List(c.Request.Context(), auth.UserID(c), ListOptions{
		UnreadOnly: c.Query("unread") == "true",
		Limit:      utils.QueryInt(c, "limit", 20, 1, 100),
		Offset:     utils.QueryInt(c, "offset", 0, 0, 0),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// HandleMarkRead marks one, many or all notifications as read
func (h *Handler) HandleMarkRead(c *gin.Context) {
	req, err := bindBulk(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := auth.UserID(c)
	var updated int64
	if req.MarkAll {
		updated, err = h.store.MarkAllRead(ctx, userID)
	} else {
		updated, err = h.store.MarkRead(ctx, userID, req.ids())
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	unread, err := h.store.UnreadCount(ctx, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "unreadCount": unread})
}

// HandleDeleteNotifications deletes one, many, all, or all read notifications
func (h *Handler) HandleDeleteNotifications(c *gin.Context) {
	req, err := bindBulk(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := auth.UserID(c)
	var deleted int64
	switch {
	case req.All:
		deleted, err = h.store.DeleteAll(ctx, userID)
	case req.Read:
		deleted, err = h.store.DeleteRead(ctx, userID)
	default:
		deleted, err = h.store.Delete(ctx, userID, req.ids())
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
