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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianChat/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianChat/services/gateway/observability"
	"github.com/AleutianAI/AleutianChat/services/llm"
)

// HandleListModels returns the model catalogs and the active pair.
func HandleListModels(gw *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"available_models": gw.GetAvailableModels(),
			"description":      "Free models available for selection",
			"providers": gin.H{
				"ollama":      "Local models served by Ollama (privacy-focused)",
				"huggingface": "Free Hugging Face Inference API models",
			},
		})
	}
}

// HandleSwitchModel activates a different (provider, model) pair. The
// switch is transactional inside the gateway; validation failures come
// back as a structured failure result, not an HTTP error.
func HandleSwitchModel(gw *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ModelSwitchRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the model switch request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result := gw.SwitchModel(c.Request.Context(),
			llm.ProviderKind(req.Provider), req.ModelName)

		if m := observability.DefaultMetrics; m != nil {
			status := "failure"
			if result.Success {
				status = "success"
			}
			m.ModelSwitchesTotal.WithLabelValues(status).Inc()
		}

		c.JSON(http.StatusOK, datatypes.ModelSwitchResponse{
			Success:         result.Success,
			Message:         result.Message,
			CurrentProvider: string(result.Provider),
			CurrentModel:    gw.CurrentModelInfo().DisplayName,
		})
	}
}

// HandleCurrentModel reports the active pair and its status flags.
func HandleCurrentModel(gw *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gw.GetModelStatus()
		c.JSON(http.StatusOK, gin.H{
			"provider":   status.Provider,
			"model_name": status.Model,
			"model_info": status.ModelInfo,
			"status": gin.H{
				"loaded":            status.Loaded,
				"initialized":       status.Initialized,
				"last_health_check": status.LastHealthCheck,
			},
		})
	}
}
