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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianChat/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianChat/services/llm"
)

func modelsRouter(gw *llm.Gateway) *gin.Engine {
	router := gin.New()
	models := router.Group("/models")
	models.GET("", HandleListModels(gw))
	models.POST("/switch", HandleSwitchModel(gw))
	models.GET("/current", HandleCurrentModel(gw))
	return router
}

func TestHandleListModels(t *testing.T) {
	gw := newTestGateway(t)
	router := modelsRouter(gw)

	w := performJSON(router, http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AvailableModels llm.AvailableModels `json:"available_models"`
		Providers       map[string]string   `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AvailableModels.Ollama)
	assert.NotEmpty(t, resp.AvailableModels.HuggingFace)
	assert.Equal(t, llm.ProviderMock, resp.AvailableModels.CurrentProvider)
	assert.Contains(t, resp.Providers, "ollama")
	assert.Contains(t, resp.Providers, "huggingface")
}

func TestHandleSwitchModel(t *testing.T) {
	gw := newTestGateway(t)
	router := modelsRouter(gw)

	t.Run("rejects malformed body", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/models/switch", `{"provider": "ollama"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown provider is a structured failure", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/models/switch",
			`{"provider": "openai", "model_name": "gpt-4"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.ModelSwitchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "Unsupported provider")
		assert.Equal(t, "mock", resp.CurrentProvider)
	})

	t.Run("unknown model is a structured failure", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/models/switch",
			`{"provider": "ollama", "model_name": "nonexistent"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.ModelSwitchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "not available")
	})

	t.Run("switch to mock succeeds", func(t *testing.T) {
		w := performJSON(router, http.MethodPost, "/models/switch",
			`{"provider": "mock", "model_name": "mock"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.ModelSwitchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "mock", resp.CurrentProvider)
		assert.Equal(t, "Mock Model", resp.CurrentModel)
	})
}

func TestHandleCurrentModel(t *testing.T) {
	gw := newTestGateway(t)
	router := modelsRouter(gw)

	w := performJSON(router, http.MethodGet, "/models/current", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Provider  string        `json:"provider"`
		ModelName string        `json:"model_name"`
		ModelInfo llm.ModelInfo `json:"model_info"`
		Status    struct {
			Loaded      bool `json:"loaded"`
			Initialized bool `json:"initialized"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "mock", resp.Provider)
	assert.True(t, resp.Status.Loaded)
	assert.True(t, resp.Status.Initialized)
	assert.Equal(t, "Mock Model", resp.ModelInfo.DisplayName)
}
