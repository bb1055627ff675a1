// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire shapes shared by the REST and WebSocket
// surfaces of the chat gateway.
package datatypes

import "time"

// ChatMessage is an incoming chat turn, over REST or a WebSocket frame.
type ChatMessage struct {
	Message        string         `json:"message" binding:"required"`
	ConversationID string         `json:"conversation_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChatResponse is the reply for one chat turn.
type ChatResponse struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ModelSwitchRequest asks the gateway to activate a different backend.
type ModelSwitchRequest struct {
	Provider  string `json:"provider" binding:"required"`
	ModelName string `json:"model_name" binding:"required"`
}

// ModelSwitchResponse reports the switch outcome and the pair that is
// active after the call.
type ModelSwitchResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	CurrentProvider string `json:"current_provider"`
	CurrentModel    string `json:"current_model"`
}

// ErrorFrame is sent to WebSocket clients when a frame cannot be handled.
type ErrorFrame struct {
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
