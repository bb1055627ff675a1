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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianChat/services/llm"
)

const serviceVersion = "2.0.0"

// HandleRoot is the service banner: name, status, active model.
func HandleRoot(gw *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":       "Aleutian Chat Gateway",
			"status":        "healthy",
			"timestamp":     time.Now(),
			"version":       serviceVersion,
			"current_model": gw.CurrentModelInfo(),
		})
	}
}

// HandleHealth probes the active provider. Returns 503 when the backend
// is unreachable so orchestration can restart or reroute.
func HandleHealth(gw *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !gw.HealthCheck(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	}
}
