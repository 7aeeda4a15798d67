// Copyright (C) 2025 fireplex contributors
// Tests for route registration

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ArmDaniel/fireplex/services/orchestrator/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	t.Setenv("SEARCH_SERVICE_URL", "http://localhost:1")
	router := gin.New()
	SetupRoutes(router, nil, services.NewSearchClient())
	return router
}

func TestSetupRoutes_Health(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_AnswerStreamRegistered(t *testing.T) {
	router := setupTestRouter(t)

	// No LLM client configured: a valid request reaches the handler and
	// fails with a configuration error rather than a 404.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/answer/stream", nil)
	router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusNotFound, w.Code)
}
