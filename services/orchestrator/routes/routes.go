// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/ArmDaniel/fireplex/services/llm"
	"github.com/ArmDaniel/fireplex/services/orchestrator/handlers"
	"github.com/ArmDaniel/fireplex/services/orchestrator/services"
)

// SetupRoutes registers all orchestrator routes on the router.
func SetupRoutes(router *gin.Engine, llmClient llm.LLMClient, searchClient *services.SearchClient) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tracer := otel.Tracer("fireplex/orchestrator")
	answerHandler := handlers.NewAnswerStreamHandler(llmClient, searchClient, tracer)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/answer/stream", answerHandler.HandleAnswerStream)
	}
}
