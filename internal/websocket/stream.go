package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
)

const (
	writeWait = 10 * time.Second
	idleWait  = 5 * time.Minute
)

// NewUpgrader accepts any origin when allowedOrigins is empty.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Stream is one attempt connection. It is not safe for concurrent writers;
// the handler reads and replies on a single goroutine.
type Stream struct {
	conn *websocket.Conn
	idle time.Duration
}

func NewStream(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn, idle: idleWait}
}

// Next blocks for the next client action. The connection is dropped when
// nothing arrives within the idle window.
func (s *Stream) Next() (RequestPayload, error) {
	var msg RequestPayload
	s.conn.SetReadDeadline(time.Now().Add(s.idle))
	err := s.conn.ReadJSON(&msg)
	return msg, err
}

func (s *Stream) Saved(n int) error {
	return s.send(SavedResponse{Event: EventSaved, Saved: n})
}

func (s *Stream) Graded(out *model.SubmissionResult) error {
	return s.send(GradedResponse{Event: EventGraded, Result: out})
}

func (s *Stream) Pong() error {
	return s.send(PongResponse{Event: EventPong})
}

// Fail reports an error event using the REST error codes.
func (s *Stream) Fail(code response.ErrCode, msg string) error {
	return s.send(ErrorResponse{Event: EventError, Code: string(code), Error: msg})
}

// Closed reports whether err is an ordinary client disconnect.
func Closed(err error) bool {
	return !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}

func (s *Stream) send(v any) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}
