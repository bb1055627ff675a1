// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianChat/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianChat/services/gateway/observability"
	"github.com/AleutianAI/AleutianChat/services/gateway/registry"
	"github.com/AleutianAI/AleutianChat/services/llm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// wsTransport adapts a gorilla connection to the registry's Transport.
// Gorilla allows only one concurrent writer per connection, so writes are
// serialized with a mutex: the chat loop, the sweeper's pings, and
// broadcasts may all target the same connection.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) SendText(payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// HandleChatWebSocket upgrades the connection, registers the client, and
// runs the chat read loop until the client goes away. Frames default their
// conversation id to the client id, matching the REST contract otherwise.
func HandleChatWebSocket(gw *llm.Gateway, reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.Param("clientId")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Handshake failures propagate to the client; nothing was
			// registered so there is nothing to clean up.
			slog.Error("Failed to upgrade the websocket", "client_id", clientID, "error", err)
			return
		}
		transport := &wsTransport{conn: conn}
		defer conn.Close()

		reg.Connect(transport, clientID)
		defer reg.Disconnect(clientID)

		if m := observability.DefaultMetrics; m != nil {
			m.ActiveWebsockets.Inc()
			defer m.ActiveWebsockets.Dec()
		}
		slog.Info("WebSocket chat session started", "client_id", clientID)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				slog.Info("WebSocket client disconnected", "client_id", clientID, "error", err.Error())
				return
			}

			var req datatypes.ChatMessage
			if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
				frame, _ := json.Marshal(datatypes.ErrorFrame{
					Type:      "error",
					Error:     "invalid chat frame",
					Timestamp: time.Now(),
				})
				reg.SendPersonal(clientID, string(frame))
				continue
			}
			if req.ConversationID == "" {
				req.ConversationID = clientID
			}

			start := time.Now()
			reply := gw.ProcessMessage(c.Request.Context(), req.Message, req.ConversationID)
			observeTurn("websocket", string(gw.GetModelStatus().Provider), time.Since(start))

			resp, _ := json.Marshal(datatypes.ChatResponse{
				Response:       reply,
				ConversationID: req.ConversationID,
				Timestamp:      time.Now(),
			})
			reg.SendPersonal(clientID, string(resp))
		}
	}
}
