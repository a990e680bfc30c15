package sinks

import (
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/dispatch/protocol"
)

// WebSocketSinkConfig holds WebSocket sink configuration
type WebSocketSinkConfig struct {
	Conn   *websocket.Conn
	Source string // Source name written into every message
	Logger telemetry.Logger // Nil creates an info-level logger
}

// WebSocketSink writes flushed batches to a WebSocket connection as JSON.
//
// gorilla/websocket allows one concurrent writer per connection. Handle and
// Canceled run on the source's serial queue, which provides exactly that.
type WebSocketSink[E any] struct {
	config WebSocketSinkConfig
	logger telemetry.Logger
	seq    uint64
	failed atomic.Bool
}

// NewWebSocketSink creates a new WebSocket sink
func NewWebSocketSink[E any](config WebSocketSinkConfig) *WebSocketSink[E] {
	return &WebSocketSink[E]{
		config: config,
		logger: sinkLogger(config.Logger, "websocket_sink"),
	}
}

// Handle sends batch as a single text frame. After a failed write the
// connection is considered gone and later batches are dropped.
func (ws *WebSocketSink[E]) Handle(batch []E) {
	if ws.failed.Load() {
		ws.logger.Debug("Dropping batch, connection failed", telemetry.String("source", ws.config.Source), telemetry.Int("events", len(batch)))
		return
	}

	ws.seq++
	msg := protocol.NewBatchMessage(ws.config.Source, ws.seq, batch)
	ws.write(msg)
}

// Canceled tells the client that no more batches follow. Register it with
// Source.SetCancelHandler.
func (ws *WebSocketSink[E]) Canceled() {
	if ws.failed.Load() {
		return
	}
	ws.write(protocol.NewSourceCanceledMessage(ws.config.Source, ws.seq))
}

// Failed reports whether a write to the connection has failed
func (ws *WebSocketSink[E]) Failed() bool {
	return ws.failed.Load()
}

func (ws *WebSocketSink[E]) write(msg *protocol.BatchMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		// Log error but keep the connection; the next batch may encode fine
		ws.logger.Error("Failed to marshal message", telemetry.Err(err), telemetry.String("source", ws.config.Source), telemetry.String("type", string(msg.Type)))
		return
	}

	if err := ws.config.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.failed.Store(true)
		ws.logger.Error("Failed to send message to WebSocket", telemetry.Err(err), telemetry.String("source", ws.config.Source), telemetry.String("type", string(msg.Type)))
		return
	}

	ws.logger.Debug("Sent message to WebSocket", telemetry.String("type", string(msg.Type)), telemetry.String("source", ws.config.Source), telemetry.Int("count", msg.Count))
}
