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
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianChat/services/gateway/datatypes"
)

func TestHandleChat(t *testing.T) {
	gw := newTestGateway(t)
	router := gin.New()
	router.POST("/chat", HandleChat(gw))

	t.Run("answers with the supplied conversation id", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/chat",
			`{"message": "hello there", "conversation_id": "conv-42"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.ChatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "conv-42", resp.ConversationID)
		assert.Contains(t, resp.Response, "hello there")
		assert.False(t, resp.Timestamp.IsZero())

		// Both turns land in the gateway's history
		turns := gw.ConversationTurns("conv-42")
		require.Len(t, turns, 2)
		assert.Equal(t, "hello there", turns[0].Content)
	})

	t.Run("generates a conversation id when missing", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/chat", `{"message": "no id here"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.ChatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp.ConversationID)
		assert.NoError(t, err, "generated conversation id should be a UUID")
	})

	t.Run("rejects a missing message", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/chat", `{"conversation_id": "conv-42"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/chat", `{"message": `)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
