package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/scanqa/internal/pipeline"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent on /ws/batch.
const (
	wsTypeStarted   = "started"
	wsTypeItem      = "item"
	wsTypeCompleted = "completed"
	wsTypeError     = "error"
)

// WebSocketBatchRequest is the single message a client sends on /ws/batch.
// Data fields are base64 in JSON.
type WebSocketBatchRequest struct {
	Files []WebSocketFile `json:"files"`
}

// WebSocketFile is one uploaded file.
type WebSocketFile struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// WebSocketMessage is a server-to-client message.
type WebSocketMessage struct {
	Type      string                    `json:"type"`
	Index     *int                      `json:"index,omitempty"`
	Completed int                       `json:"completed,omitempty"`
	Total     int                       `json:"total,omitempty"`
	Item      *pipeline.BatchItemResult `json:"item,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// batchWebSocketHandler runs one batch per connection and streams items as they finish.
func (s *Server) batchWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			slog.Warn("WebSocket read failed", "error", err)
		}
		return
	}
	websocketMessagesTotal.WithLabelValues("received").Inc()

	writer := &lockedWriter{conn: conn}
	var req WebSocketBatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketMessage(writer, WebSocketMessage{Type: wsTypeError, Error: "invalid request: " + err.Error()})
		return
	}
	if len(req.Files) == 0 {
		s.sendWebSocketMessage(writer, WebSocketMessage{Type: wsTypeError, Error: "no files provided"})
		return
	}

	files := make([]pipeline.File, len(req.Files))
	for i, f := range req.Files {
		files[i] = pipeline.File{Name: f.Name, Data: f.Data}
	}

	ctx, cancel := s.batchContext(r)
	defer cancel()
	start := time.Now()
	_, err = s.pipeline.AssessBatchWithProgress(ctx, files, &wsProgress{server: s, conn: writer})
	observeAssessment("websocket_batch", start, err)
	if err != nil {
		s.sendWebSocketMessage(writer, WebSocketMessage{Type: wsTypeError, Error: err.Error()})
		return
	}
	s.sendWebSocketMessage(writer, WebSocketMessage{Type: wsTypeCompleted})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// lockedWriter serializes writes; gorilla connections allow one concurrent writer.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// wsProgress streams batch progress to a client.
type wsProgress struct {
	server *Server
	conn   WebSocketConnWriter
}

func (p *wsProgress) OnStart(total int) {
	p.server.sendWebSocketMessage(p.conn, WebSocketMessage{Type: wsTypeStarted, Total: total})
}

func (p *wsProgress) OnItem(index, completed, total int, item pipeline.BatchItemResult) {
	p.server.sendWebSocketMessage(p.conn, WebSocketMessage{
		Type:      wsTypeItem,
		Index:     &index,
		Completed: completed,
		Total:     total,
		Item:      &item,
	})
}

func (p *wsProgress) OnComplete() {}

// sendWebSocketMessage sends a message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
