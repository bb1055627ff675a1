// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianChat/services/gateway/handlers"
	"github.com/AleutianAI/AleutianChat/services/gateway/registry"
	"github.com/AleutianAI/AleutianChat/services/llm"
)

// SetupRoutes wires the gateway's HTTP and WebSocket surface onto router.
func SetupRoutes(router *gin.Engine, gw *llm.Gateway, reg *registry.Registry) {
	router.GET("/", handlers.HandleRoot(gw))
	router.GET("/health", handlers.HandleHealth(gw))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stats", handlers.HandleStats(gw, reg))

	router.POST("/chat", handlers.HandleChat(gw))
	router.GET("/ws/:clientId", handlers.HandleChatWebSocket(gw, reg))

	models := router.Group("/models")
	{
		models.GET("", handlers.HandleListModels(gw))
		models.POST("/switch", handlers.HandleSwitchModel(gw))
		models.GET("/current", handlers.HandleCurrentModel(gw))
	}
}
