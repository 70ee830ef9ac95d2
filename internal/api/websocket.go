package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleWebSocket upgrades the connection and starts its read/write pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Subs: make(map[string]bool),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	s.logger.Info("websocket client connected", zap.String("id", client.ID))

	go s.readPump(client)
	go s.writePump(client)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.ID)
		s.mu.Unlock()
		client.Conn.Close()
		s.logger.Info("websocket client disconnected", zap.String("id", client.ID))
	}()

	client.Conn.SetReadLimit(512 * 1024)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}
		s.handleMessage(client, &msg)
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client request to a response.
func (s *Server) handleMessage(client *Client, msg *Message) {
	response := &Message{
		ID:        msg.ID,
		Type:      "response",
		Method:    msg.Method,
		Timestamp: time.Now().UnixMilli(),
	}

	switch msg.Method {
	case "ping":
		response.Payload = map[string]string{"pong": "ok"}

	case "bot:status":
		response.Payload = s.state.Status()

	case "bot:start":
		s.state.Start(time.Now())
		response.Payload = s.state.Status()

	case "bot:stop":
		s.state.Stop(time.Now())
		response.Payload = s.state.Status()

	case "subscribe":
		payload, _ := msg.Payload.(map[string]interface{})
		channel, _ := payload["channel"].(string)
		client.Subs[channel] = true
		response.Payload = map[string]string{"subscribed": channel}

	case "unsubscribe":
		payload, _ := msg.Payload.(map[string]interface{})
		channel, _ := payload["channel"].(string)
		delete(client.Subs, channel)
		response.Payload = map[string]string{"unsubscribed": channel}

	default:
		response.Error = "unknown method"
	}

	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	client.Send <- raw
}
