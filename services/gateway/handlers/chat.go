// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP and WebSocket surface of the chat
// gateway. Handlers are thin: request parsing, id defaulting, and metric
// updates; all chat policy lives in services/llm and the registry.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianChat/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianChat/services/gateway/observability"
	"github.com/AleutianAI/AleutianChat/services/llm"
)

var chatTracer = otel.Tracer("aleutian.chat.handlers")

// observeTurn records request metrics when metrics are initialized.
func observeTurn(endpoint, provider string, elapsed time.Duration) {
	m := observability.DefaultMetrics
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, "success").Inc()
	m.ReplyLatencySeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// HandleChat serves the REST chat endpoint. A missing conversation id gets
// a fresh UUID so follow-up turns can reference the same history.
func HandleChat(gw *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatMessage
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.ConversationID == "" {
			req.ConversationID = uuid.New().String()
		}

		start := time.Now()
		reply := gw.ProcessMessage(ctx, req.Message, req.ConversationID)
		observeTurn("rest", string(gw.GetModelStatus().Provider), time.Since(start))

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Response:       reply,
			ConversationID: req.ConversationID,
			Timestamp:      time.Now(),
		})
	}
}
