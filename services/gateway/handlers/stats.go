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
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianChat/services/gateway/registry"
	"github.com/AleutianAI/AleutianChat/services/llm"
)

// HandleStats returns the JSON service statistics snapshot: connection
// registry state, gateway counters, and process identity.
func HandleStats(gw *llm.Gateway, reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gw.GetModelStatus()
		c.JSON(http.StatusOK, gin.H{
			"service_info": gin.H{
				"name":        "Aleutian Chat Gateway",
				"version":     serviceVersion,
				"environment": envOr("ENVIRONMENT", "development"),
			},
			"connections": gin.H{
				"active_websocket_connections": reg.ActiveCount(),
				"total_connections_served":     reg.TotalServed(),
				"clients":                      reg.AllInfo(),
			},
			"llm_service": gin.H{
				"messages_processed":    gw.MessageCount(),
				"average_response_time": gw.AverageResponseTime(),
				"model_loaded":          status.Loaded,
				"uptime_seconds":        gw.Uptime().Seconds(),
			},
			"system": gin.H{
				"timestamp": time.Now(),
				"hostname":  envOr("HOSTNAME", "unknown"),
			},
		})
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
