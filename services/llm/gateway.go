// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var gatewayTracer = otel.Tracer("aleutian.chat.llm.gateway")

// Config selects the backend the gateway starts with. Values are read once
// at construction; later changes go through SwitchModel.
type Config struct {
	Provider ProviderKind
	Model    string
	BaseURL  string
	HFToken  string
}

// ConfigFromEnv reads the gateway configuration from the environment:
// LLM_MODEL_PROVIDER, LLM_MODEL_NAME, LLM_BASE_URL, HF_API_TOKEN.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider: ProviderKind(os.Getenv("LLM_MODEL_PROVIDER")),
		Model:    os.Getenv("LLM_MODEL_NAME"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
		HFToken:  os.Getenv("HF_API_TOKEN"),
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderOllama
	}
	if cfg.Model == "" {
		cfg.Model = "phi"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return cfg
}

// SwitchResult reports the outcome of a model switch attempt along with the
// pair that is active after the call, whichever way it went.
type SwitchResult struct {
	Success  bool
	Message  string
	Provider ProviderKind
	Model    string
}

// ModelStatus is a point-in-time snapshot of the active provider state.
type ModelStatus struct {
	Provider        ProviderKind `json:"model_provider"`
	Model           string       `json:"model_name"`
	ModelInfo       ModelInfo    `json:"model_info"`
	Loaded          bool         `json:"model_loaded"`
	Initialized     bool         `json:"is_initialized"`
	LastHealthCheck *time.Time   `json:"last_health_check"`
}

// AvailableModels lists the catalogs plus the currently active pair.
type AvailableModels struct {
	Ollama          []ModelInfo  `json:"ollama"`
	HuggingFace     []ModelInfo  `json:"huggingface"`
	CurrentProvider ProviderKind `json:"current_provider"`
	CurrentModel    ModelInfo    `json:"current_model"`
}

// Gateway routes chat turns to the active provider while owning the
// conversation store and aggregate counters. Construct one per process and
// hand it to every request handler; there is no package-level instance.
//
// The RWMutex guards the (provider, model) pair and the status flags so a
// switch in progress is never observed half-applied. Counters have their
// own mutex; conversation appends are serialized per conversation inside
// the store.
type Gateway struct {
	mu              sync.RWMutex
	cfg             Config
	provider        Provider
	modelLoaded     bool
	initialized     bool
	lastHealthCheck time.Time

	conversations *ConversationStore

	statsMu           sync.Mutex
	messageCount      int64
	totalResponseTime time.Duration

	startTime time.Time
	clock     func() time.Time
}

// NewGateway creates a gateway for cfg. Call Initialize before serving.
func NewGateway(cfg Config) *Gateway {
	return &Gateway{
		cfg:           cfg,
		conversations: NewConversationStore(),
		startTime:     time.Now(),
		clock:         time.Now,
	}
}

// buildProvider constructs the provider for cfg. The zero or unknown kind
// maps to the mock provider so a misconfigured gateway still answers.
func buildProvider(cfg Config) Provider {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	case ProviderHuggingFace:
		return NewHuggingFaceProvider(cfg.Model, cfg.HFToken)
	default:
		return NewMockProvider()
	}
}

// Initialize brings up the configured provider. On any failure it logs and
// falls back to the mock provider: the gateway is never left unable to
// answer. The configured (provider, model) pair is kept for status
// reporting even when serving degraded from the mock.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initializeLocked(ctx)
}

func (g *Gateway) initializeLocked(ctx context.Context) error {
	slog.Info("Initializing model gateway",
		"provider", g.cfg.Provider, "model", g.cfg.Model)

	if err := g.initStrictLocked(ctx); err != nil {
		slog.Error("Provider initialization failed, falling back to mock", "error", err)
		mock := NewMockProvider()
		if mockErr := mock.Initialize(ctx); mockErr != nil {
			return mockErr // only reachable on context cancellation
		}
		g.provider = mock
		// modelLoaded stays false: the configured model is not serving,
		// which is how status endpoints signal the degraded state.
		g.modelLoaded = false
		g.initialized = true
		return nil
	}
	slog.Info("Model gateway initialized", "provider", g.cfg.Provider, "model", g.cfg.Model)
	return nil
}

// initStrictLocked initializes the configured provider without the mock
// fallback. SwitchModel uses it so a broken target pair surfaces as an
// error and triggers rollback instead of silently degrading.
func (g *Gateway) initStrictLocked(ctx context.Context) error {
	p := buildProvider(g.cfg)
	if err := p.Initialize(ctx); err != nil {
		return err
	}
	g.provider = p
	// Initialization may resolve the requested name to an exact tag
	// (e.g. "phi" -> "phi:latest"); status reports what is serving.
	g.cfg.Model = p.ActiveModel()
	g.modelLoaded = true
	g.initialized = true
	return nil
}

// SwitchModel swaps the active (provider, model) pair transactionally:
// validate, snapshot, install, re-initialize; on failure restore the
// snapshot and re-initialize it so the gateway always ends the call in a
// working state. Validation failures mutate nothing.
func (g *Gateway) SwitchModel(ctx context.Context, kind ProviderKind, model string) SwitchResult {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.SwitchModel")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.target_provider", string(kind)),
		attribute.String("llm.target_model", model),
	)

	g.mu.Lock()
	defer g.mu.Unlock()

	if !kind.Valid() {
		slog.Warn("Model switch rejected: unknown provider", "provider", kind)
		return g.failureLocked(fmt.Sprintf("Unsupported provider: %s", kind))
	}
	if kind != ProviderMock {
		if _, ok := ResolveModel(kind, model); !ok {
			slog.Warn("Model switch rejected: unknown model",
				"provider", kind, "model", model)
			return g.failureLocked(fmt.Sprintf("Model %s not available for provider %s", model, kind))
		}
	}

	snapshot := g.cfg
	prevProvider := g.provider

	g.cfg.Provider = kind
	g.cfg.Model = model
	g.modelLoaded = false

	if err := g.initStrictLocked(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to switch model, rolling back",
			"provider", kind, "model", model, "error", err)
		g.cfg = snapshot
		g.provider = prevProvider
		// Re-run the restored pair so the gateway ends in a working,
		// consistent state regardless of the failed attempt.
		if initErr := g.initializeLocked(ctx); initErr != nil {
			slog.Error("Re-initialization after rollback failed", "error", initErr)
		}
		return g.failureLocked(fmt.Sprintf("Failed to switch to %s:%s", kind, model))
	}

	slog.Info("Switched model", "provider", kind, "model", g.cfg.Model)
	return SwitchResult{
		Success:  true,
		Message:  fmt.Sprintf("Successfully switched to %s:%s", kind, model),
		Provider: g.cfg.Provider,
		Model:    g.cfg.Model,
	}
}

// failureLocked builds a failure result carrying the still-active pair.
func (g *Gateway) failureLocked(msg string) SwitchResult {
	return SwitchResult{
		Success:  false,
		Message:  msg,
		Provider: g.cfg.Provider,
		Model:    g.cfg.Model,
	}
}

// ProcessMessage routes one chat turn through the active provider. It
// appends the user turn, builds the context window, dispatches, appends
// the assistant turn, and updates the running counters. Every failure in
// this path is converted to an apologetic reply; the call never fails past
// its boundary, and both turns are recorded even when the provider throws.
func (g *Gateway) ProcessMessage(ctx context.Context, message, conversationID string) string {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.ProcessMessage")
	defer span.End()
	span.SetAttributes(attribute.String("chat.conversation_id", conversationID))

	start := g.clock()

	g.conversations.Append(conversationID, roleUser, message)
	contextWindow := g.conversations.BuildContext(conversationID)

	g.mu.RLock()
	p := g.provider
	g.mu.RUnlock()

	var reply string
	var err error
	if p == nil {
		err = errors.New("gateway not initialized")
	} else {
		reply, err = p.GenerateReply(ctx, message, contextWindow)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Error processing message", "conversation_id", conversationID, "error", err)
		reply = fmt.Sprintf("I apologize, but I encountered an error processing your message: %v", err)
	}

	g.conversations.Append(conversationID, roleAssistant, reply)

	elapsed := g.clock().Sub(start)
	g.statsMu.Lock()
	g.messageCount++
	g.totalResponseTime += elapsed
	g.statsMu.Unlock()

	slog.Info("Processed message",
		"conversation_id", conversationID,
		"duration_ms", elapsed.Milliseconds(),
	)
	return reply
}

// HealthCheck probes the active provider and records the check time.
// Failures return false, never an error.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	g.mu.RLock()
	p := g.provider
	g.mu.RUnlock()
	if p == nil {
		return false
	}
	healthy := p.HealthCheck(ctx)
	g.mu.Lock()
	g.lastHealthCheck = g.clock()
	g.mu.Unlock()
	return healthy
}

// GetAvailableModels lists both catalogs plus the active pair.
func (g *Gateway) GetAvailableModels() AvailableModels {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return AvailableModels{
		Ollama:          CatalogModels(ProviderOllama),
		HuggingFace:     CatalogModels(ProviderHuggingFace),
		CurrentProvider: g.cfg.Provider,
		CurrentModel:    g.currentModelInfoLocked(),
	}
}

// GetModelStatus snapshots the provider state.
func (g *Gateway) GetModelStatus() ModelStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	status := ModelStatus{
		Provider:    g.cfg.Provider,
		Model:       g.cfg.Model,
		ModelInfo:   g.currentModelInfoLocked(),
		Loaded:      g.modelLoaded,
		Initialized: g.initialized,
	}
	if !g.lastHealthCheck.IsZero() {
		t := g.lastHealthCheck
		status.LastHealthCheck = &t
	}
	return status
}

// CurrentModelInfo returns metadata for the model actually serving.
func (g *Gateway) CurrentModelInfo() ModelInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentModelInfoLocked()
}

func (g *Gateway) currentModelInfoLocked() ModelInfo {
	if g.provider != nil {
		return g.provider.Info()
	}
	return lookupInfo(g.cfg.Provider, g.cfg.Model)
}

// MessageCount returns the number of chat turns processed since start.
func (g *Gateway) MessageCount() int64 {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	return g.messageCount
}

// AverageResponseTime returns the mean turn latency in seconds, zero when
// nothing has been processed yet.
func (g *Gateway) AverageResponseTime() float64 {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	if g.messageCount == 0 {
		return 0
	}
	return g.totalResponseTime.Seconds() / float64(g.messageCount)
}

// Uptime reports how long the gateway has existed.
func (g *Gateway) Uptime() time.Duration {
	return time.Since(g.startTime)
}

// ConversationTurns exposes a conversation's history for inspection.
func (g *Gateway) ConversationTurns(conversationID string) []Turn {
	return g.conversations.Turns(conversationID)
}
