package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/spider/pkg/models"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 45 * time.Second
)

// chatSocket upgrades /ws connections and runs the per-connection
// auth/chat/cancel/ping handshake described in spec §4.I, mirroring the
// teacher's upgrade-then-readLoop/writeLoop split.
type chatSocket struct {
	server   *Server
	upgrader websocket.Upgrader
}

func (s *Server) newChatSocket() http.Handler {
	return &chatSocket{
		server: s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *chatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &chatSession{
		server: h.server,
		conn:   conn,
		send:   make(chan models.WsServerMessage, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	sess.run()
}

type chatSession struct {
	server    *Server
	conn      *websocket.Conn
	send      chan models.WsServerMessage
	ctx       context.Context
	cancel    context.CancelFunc
	channelID uint32
	apiKey    string
	authed    bool
}

func (s *chatSession) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *chatSession) close() {
	s.cancel()
	if s.authed {
		s.server.state.RemoveClient(s.channelID)
	}
	close(s.send)
	_ = s.conn.Close()
}

func (s *chatSession) readLoop() {
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame models.WsClientMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			s.emit(models.WsServerMessage{Type: models.WsServerError, Error: "invalid frame: " + err.Error()})
			continue
		}

		if !s.authed {
			if frame.Type != models.WsClientAuth {
				s.emit(models.WsServerMessage{Type: models.WsServerAuthError, Error: "first frame must be auth"})
				continue
			}
			s.handleAuth(frame)
			continue
		}

		switch frame.Type {
		case models.WsClientChat:
			s.handleChat(frame)
		case models.WsClientCancel:
			s.server.state.Cancel(s.channelID)
		case models.WsClientPing:
			s.emit(models.WsServerMessage{Type: models.WsServerPong})
		default:
			s.emit(models.WsServerMessage{Type: models.WsServerError, Error: "unknown frame type " + frame.Type})
		}
	}
}

func (s *chatSession) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *chatSession) emit(msg models.WsServerMessage) {
	select {
	case s.send <- msg:
	case <-s.ctx.Done():
	}
}

func (s *chatSession) handleAuth(frame models.WsClientMessage) {
	if err := s.server.auth.ValidateKey(frame.ApiKey, ""); err != nil {
		s.emit(models.WsServerMessage{Type: models.WsServerAuthError, Error: err.Error()})
		return
	}
	s.apiKey = frame.ApiKey
	s.channelID = s.server.state.NextChannelID()
	s.authed = true
	s.server.state.RegisterClient(s.channelID, &models.ChatClient{
		ChannelID:   s.channelID,
		ApiKey:      s.apiKey,
		ConnectedAt: time.Now().Unix(),
	})
	s.emit(models.WsServerMessage{Type: models.WsServerAuthSuccess, Text: "authenticated"})
}

func (s *chatSession) handleChat(frame models.WsClientMessage) {
	var payload models.WsChatPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		s.emit(models.WsServerMessage{Type: models.WsServerError, Error: "invalid chat payload: " + err.Error()})
		return
	}

	req := models.ChatRequest{
		ApiKey:      s.apiKey,
		Messages:    payload.Messages,
		LLMProvider: payload.LLMProvider,
		McpServers:  payload.McpServers,
		Metadata:    payload.Metadata,
	}

	events := make(chan models.WsServerMessage, 32)
	go func() {
		for msg := range events {
			s.emit(msg)
		}
	}()

	resp, err := s.server.loop.Run(s.ctx, req, s.channelID, events)
	close(events)
	if err == nil {
		if client, ok := s.server.state.Client(s.channelID); ok {
			client.ConversationID = resp.ConversationID
		}
	}
}
