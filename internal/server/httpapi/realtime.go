package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/auth"
	"github.com/obsync-io/obsync/internal/server/services"
)

const (
	wsWriteTimeout = 10 * time.Second

	// Clients only ever send control frames; anything bigger is a protocol
	// violation and kills the read pump.
	wsReadLimit = 512
)

type wsBacklogEvent struct {
	Seq       int64           `json:"seq"`
	OpType    string          `json:"opType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

type wsBacklog struct {
	Type   string           `json:"type"`
	Events []wsBacklogEvent `json:"events"`
}

type wsEvent struct {
	Type      string          `json:"type"`
	VaultID   string          `json:"vaultId"`
	Seq       int64           `json:"seq"`
	OpType    string          `json:"opType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

type wsKeepalive struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

type wsError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := splitOrigins(s.config.CORSAllowedOrigins)
	return &websocket.Upgrader{
		Subprotocols: []string{common.WebsocketAuthProtocol},
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

func writeFrame(conn *websocket.Conn, frame any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// closeWithError reports the failure in-stream and closes. Auth and access
// failures surface here rather than as HTTP statuses because the upgrade has
// already happened by the time the credential is checked.
func closeWithError(conn *websocket.Conn, err error) {
	_, body := classifyError(err)
	_ = writeFrame(conn, wsError{
		Type:        "error",
		Code:        body.Code,
		Message:     body.Message,
		Remediation: body.Remediation,
	})
}

// handleRealtime upgrades to a websocket and streams committed ops for one
// vault: a backlog frame first, live events after, keepalives in between.
// The subscription is registered before the backlog read so nothing falls
// in the gap; live events at or below the backlog watermark are duplicates
// of the overlap window and are filtered out.
func (s *Server) handleRealtime(c *gin.Context) {
	since, err := parseInt64Query(c, "since", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		s.logger.Warn(c.Request.Context(), "websocket upgrade failed",
			"error", err, "trace_id", traceIDFrom(c))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	vaultID := c.Param("vaultId")

	principal, err := s.resolvePrincipal(c)
	if err != nil {
		closeWithError(conn, err)
		return
	}
	if err := s.services.Gate.RequireScope(principal, auth.ScopeRead); err != nil {
		closeWithError(conn, err)
		return
	}
	if _, err := s.services.Gate.RequireVaultOwner(ctx, principal, vaultID); err != nil {
		closeWithError(conn, err)
		return
	}

	sub := s.bus.Subscribe(vaultID)
	defer sub.Close()

	backlog, err := s.services.Pull.Pull(ctx, principal, vaultID, since, services.BacklogLimit, "")
	if err != nil {
		closeWithError(conn, err)
		return
	}

	frame := wsBacklog{Type: "backlog", Events: make([]wsBacklogEvent, 0, len(backlog.Ops))}
	for _, op := range backlog.Ops {
		frame.Events = append(frame.Events, wsBacklogEvent{
			Seq:       op.Seq,
			OpType:    op.OpType,
			Payload:   op.Payload,
			CreatedAt: op.CreatedAt,
		})
	}
	if err := writeFrame(conn, frame); err != nil {
		return
	}
	watermark := backlog.Watermark

	// Read pump: discards client frames, surfaces disconnects, and lets the
	// websocket library process control messages.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepalive := time.NewTicker(s.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-readDone:
			return

		case <-sub.Dropped():
			_ = writeFrame(conn, wsError{
				Type:        "error",
				Code:        common.CodeSubscriptionDropped,
				Message:     "subscription dropped",
				Remediation: "reconnect and reconcile via pull",
			})
			return

		case event := <-sub.Events():
			if event.Seq <= watermark {
				continue
			}
			watermark = event.Seq
			err := writeFrame(conn, wsEvent{
				Type:      "event",
				VaultID:   event.VaultID,
				Seq:       event.Seq,
				OpType:    event.OpType,
				Payload:   event.Payload,
				CreatedAt: event.CreatedAt,
			})
			if err != nil {
				return
			}

		case <-keepalive.C:
			if err := writeFrame(conn, wsKeepalive{Type: "keepalive", TS: time.Now().UnixMilli()}); err != nil {
				return
			}
		}
	}
}
