package streams

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"myautowhiz-backend/internal/auth"
)

// UnreadCounter reports a user's unread notification count.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// NotificationStream pushes unread-count changes to dashboard clients.
type NotificationStream struct {
	counter  UnreadCounter
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewNotificationStream creates a stream that polls counter every interval.
// Connections are accepted only from allowedOrigins; an empty list accepts any origin.
func NewNotificationStream(counter UnreadCounter, interval time.Duration, allowedOrigins []string) *NotificationStream {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &NotificationStream{
		counter:  counter,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 << 10,
			WriteBufferSize: 4 << 10,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

type unreadMessage struct {
	Type   string `json:"type"`
	Unread int64  `json:"unread"`
	Error  string `json:"error,omitempty"`
}

// HandleNotificationWebSocket streams the caller's unread count whenever it changes.
func (s *NotificationStream) HandleNotificationWebSocket(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the client never sends data; reading detects disconnects
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		unread, err := s.counter.UnreadCount(ctx, userID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).WithField("user_id", userID).Warn("unread count failed")
			if err := conn.WriteJSON(unreadMessage{Type: "notifications", Unread: last, Error: "failed to load notifications"}); err != nil {
				return
			}
		} else if unread != last {
			last = unread
			if err := conn.WriteJSON(unreadMessage{Type: "notifications", Unread: unread}); err != nil {
				return
			}
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return
		}
	}
}
