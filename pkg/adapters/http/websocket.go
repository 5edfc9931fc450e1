package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
)

// Message types of the websocket monitor.
const (
	TypeCommand  = "command"
	TypeResponse = "response"
	TypeProgress = "progress"
	TypeError    = "error"
)

const (
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 1 << 20
)

// Message is one websocket frame. Clients send commands; the server sends
// responses, progress events and errors.
type Message struct {
	Type     string                `json:"type"`
	Session  string                `json:"session,omitempty"`
	Command  *manager.Command      `json:"command,omitempty"`
	Response *manager.Response     `json:"response,omitempty"`
	Event    *domain.ProgressEvent `json:"event,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// UnmarshalJSON defaults the execution id of a command to a new task.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Command json.RawMessage `json:"command,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.plain)
	m.Command = nil
	if len(raw.Command) > 0 && string(raw.Command) != "null" {
		cmd := manager.Command{ExecutionID: manager.AllTasks}
		if err := json.Unmarshal(raw.Command, &cmd); err != nil {
			return err
		}
		m.Command = &cmd
	}
	return nil
}

// websocket serves a monitor connection. Writes go through one goroutine.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	logger := s.logger.With("session", session)
	logger.Info("monitor connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	progress, unsubscribe := s.streams.Subscribe(AllTasks)
	defer unsubscribe()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var frame any
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				frame = msg
			case data, ok := <-progress:
				if !ok {
					return
				}
				frame = json.RawMessage(progressFrame(data))
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Warn("websocket write failed", "err", err)
				cancel()
				return
			}
		}
	}()

	send := func(msg Message) {
		msg.Session = session
		select {
		case outbound <- msg:
		case <-ctx.Done():
		}
	}

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			send(Message{Type: TypeError, Error: "invalid message: " + err.Error()})
			continue
		}
		if msg.Type != TypeCommand || msg.Command == nil {
			send(Message{Type: TypeError, Error: "expected a command"})
			continue
		}
		res := s.manager.Command(ctx, *msg.Command)
		send(Message{Type: TypeResponse, Response: &res})
	}

	cancel()
	<-writerDone
	logger.Info("monitor disconnected")
}

// progressFrame wraps an encoded progress event in a Message without
// decoding it again.
func progressFrame(event []byte) []byte {
	frame, _ := json.Marshal(struct {
		Type  string          `json:"type"`
		Event json.RawMessage `json:"event"`
	}{Type: TypeProgress, Event: event})
	return frame
}
