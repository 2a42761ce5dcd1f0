package api

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pathwatch/internal/logging"
	"pathwatch/internal/watcher"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// maxCloseReason is the control frame payload limit minus the close code.
const maxCloseReason = 123

type wsErrorPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	CloseCode int    `json:"close_code,omitempty"`
}

// wsSession is one upgraded /ws connection. Only the goroutine that owns the
// session writes to conn.
type wsSession struct {
	conn    *websocket.Conn
	request *http.Request
	logger  *logging.Logger
}

func acceptWatchSocket(w http.ResponseWriter, r *http.Request, allowedOrigins []string, logger *logging.Logger) (*wsSession, bool) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, allowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		logger.Warn("websocket upgrade failed", map[string]string{
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return nil, false
	}
	return &wsSession{conn: conn, request: r, logger: logger}, true
}

func (s *wsSession) send(payload any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(payload)
}

// stream writes the acknowledgement and then every notification until the
// client disconnects. Client frames are read and discarded so control frames
// are processed.
func (s *wsSession) stream(ack watchAck, notifications <-chan watcher.Notification) {
	defer s.conn.Close()
	if err := s.send(ack); err != nil {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case notification := <-notifications:
			if err := s.send(notificationPayload{Type: "notification", Notification: notification}); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// fail reports a rejected watch as an error envelope followed by a close
// frame, then closes the connection.
func (s *wsSession) fail(status int, message string, cause error) {
	code := closeCodeForStatus(status)
	fields := map[string]string{
		"path":        s.request.URL.Path,
		"remote_addr": s.request.RemoteAddr,
		"status":      strconv.Itoa(status),
		"close_code":  strconv.Itoa(code),
		"message":     message,
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("websocket error", fields)
	} else {
		s.logger.Warn("websocket error", fields)
	}

	_ = s.send(wsErrorPayload{Type: "error", Message: message, Status: status, CloseCode: code})
	closeFrame := websocket.FormatCloseMessage(code, truncateCloseReason(message))
	_ = s.conn.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(wsWriteTimeout))
	_ = s.conn.Close()
}

func closeCodeForStatus(status int) int {
	switch {
	case status == http.StatusBadRequest:
		return websocket.CloseProtocolError
	case status == http.StatusServiceUnavailable:
		return websocket.CloseTryAgainLater
	case status >= http.StatusInternalServerError:
		return websocket.CloseInternalServerErr
	default:
		return websocket.ClosePolicyViolation
	}
}

func truncateCloseReason(reason string) string {
	if len(reason) > maxCloseReason {
		return reason[:maxCloseReason]
	}
	return reason
}

// isOriginAllowed accepts requests without an Origin header, origins listed in
// allowed (full origin or bare host), and otherwise same-host origins only.
func isOriginAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return false
	}

	if len(allowed) == 0 {
		return strings.EqualFold(parsed.Hostname(), requestHost(r.Host))
	}
	for _, entry := range allowed {
		if strings.EqualFold(origin, entry) || strings.EqualFold(parsed.Hostname(), entry) {
			return true
		}
	}
	return false
}

func requestHost(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return strings.Trim(hostport, "[]")
}
