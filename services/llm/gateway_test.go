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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a scriptable provider for gateway tests.
type stubProvider struct {
	reply   string
	err     error
	healthy bool
	info    ModelInfo
	calls   int
}

func (s *stubProvider) Initialize(ctx context.Context) error { return nil }

func (s *stubProvider) GenerateReply(ctx context.Context, message, contextWindow string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubProvider) HealthCheck(ctx context.Context) bool { return s.healthy }
func (s *stubProvider) Info() ModelInfo                      { return s.info }
func (s *stubProvider) ActiveModel() string                  { return s.info.Name }

// newStubbedGateway builds a gateway with an installed stub, skipping the
// simulated provider warm-up.
func newStubbedGateway(cfg Config, p Provider) *Gateway {
	g := NewGateway(cfg)
	g.provider = p
	g.modelLoaded = true
	g.initialized = true
	return g
}

func TestGateway_ProcessMessage_RecordsBothTurns(t *testing.T) {
	stub := &stubProvider{reply: "hello back", healthy: true}
	g := newStubbedGateway(Config{Provider: ProviderMock, Model: "mock"}, stub)

	reply := g.ProcessMessage(context.Background(), "hello", "conv-1")
	assert.Equal(t, "hello back", reply)

	turns := g.ConversationTurns("conv-1")
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, "assistant", turns[1].Role)
	assert.Equal(t, "hello back", turns[1].Content)

	assert.Equal(t, int64(1), g.MessageCount())
}

func TestGateway_ProcessMessage_ProviderErrorBecomesApology(t *testing.T) {
	stub := &stubProvider{err: errors.New("backend exploded")}
	g := newStubbedGateway(Config{Provider: ProviderOllama, Model: "phi"}, stub)

	reply := g.ProcessMessage(context.Background(), "hello", "conv-1")
	assert.Contains(t, reply, "I apologize, but I encountered an error processing your message:")
	assert.Contains(t, reply, "backend exploded")

	// The apologetic reply still lands in the history
	turns := g.ConversationTurns("conv-1")
	require.Len(t, turns, 2)
	assert.Equal(t, reply, turns[1].Content)
	assert.Equal(t, int64(1), g.MessageCount())
}

func TestGateway_ProcessMessage_Uninitialized(t *testing.T) {
	g := NewGateway(Config{Provider: ProviderMock})

	reply := g.ProcessMessage(context.Background(), "hello", "conv-1")
	assert.Contains(t, reply, "I apologize, but I encountered an error processing your message:")
	assert.Len(t, g.ConversationTurns("conv-1"), 2)
}

func TestGateway_ProcessMessage_ContextWindowReachesProvider(t *testing.T) {
	var seen string
	capture := &captureProvider{onGenerate: func(message, contextWindow string) {
		seen = contextWindow
	}}
	g := newStubbedGateway(Config{Provider: ProviderMock}, capture)

	g.ProcessMessage(context.Background(), "first", "conv-1")
	assert.Equal(t, "User: first", seen, "the new user turn is part of the window")

	g.ProcessMessage(context.Background(), "second", "conv-1")
	assert.Equal(t, "User: first\nAssistant: ok\nUser: second", seen)
}

// captureProvider records the arguments of each generation call.
type captureProvider struct {
	onGenerate func(message, contextWindow string)
}

func (c *captureProvider) Initialize(ctx context.Context) error { return nil }

func (c *captureProvider) GenerateReply(ctx context.Context, message, contextWindow string) (string, error) {
	c.onGenerate(message, contextWindow)
	return "ok", nil
}

func (c *captureProvider) HealthCheck(ctx context.Context) bool { return true }
func (c *captureProvider) Info() ModelInfo                      { return mockModelInfo }
func (c *captureProvider) ActiveModel() string                  { return mockModelInfo.Name }

func TestGateway_Initialize_FallsBackToMock(t *testing.T) {
	g := NewGateway(Config{
		Provider: ProviderOllama,
		Model:    "phi",
		BaseURL:  "http://127.0.0.1:1", // nothing listens here
	})

	require.NoError(t, g.Initialize(context.Background()))

	status := g.GetModelStatus()
	// Degraded: initialized but the configured model is not loaded
	assert.False(t, status.Loaded)
	assert.True(t, status.Initialized)
	// The configured pair is kept for status reporting
	assert.Equal(t, ProviderOllama, status.Provider)
	assert.Equal(t, "phi", status.Model)
	// But the serving model is the mock
	assert.Equal(t, mockModelInfo, g.CurrentModelInfo())
}

func TestGateway_SwitchModel_ValidationFailures(t *testing.T) {
	stub := &stubProvider{reply: "ok", info: mockModelInfo}
	g := newStubbedGateway(Config{Provider: ProviderMock, Model: "mock"}, stub)

	t.Run("unknown provider", func(t *testing.T) {
		res := g.SwitchModel(context.Background(), ProviderKind("openai"), "gpt-4")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "Unsupported provider: openai")
		assert.Equal(t, ProviderMock, res.Provider)
		assert.Equal(t, "mock", res.Model)
	})

	t.Run("unknown model", func(t *testing.T) {
		res := g.SwitchModel(context.Background(), ProviderOllama, "gpt-4")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "Model gpt-4 not available for provider ollama")
	})

	t.Run("active pair untouched after rejection", func(t *testing.T) {
		status := g.GetModelStatus()
		assert.Equal(t, ProviderMock, status.Provider)
		assert.Equal(t, "mock", status.Model)
		assert.True(t, status.Loaded)
	})
}

func TestGateway_SwitchModel_Success(t *testing.T) {
	srv, _ := newOllamaStub(t, []string{"tinyllama:latest"}, nil)

	stub := &stubProvider{info: mockModelInfo}
	g := newStubbedGateway(Config{
		Provider: ProviderMock,
		Model:    "mock",
		BaseURL:  srv.URL,
	}, stub)

	res := g.SwitchModel(context.Background(), ProviderOllama, "tinyllama")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "Successfully switched to ollama:tinyllama")
	assert.Equal(t, ProviderOllama, res.Provider)

	status := g.GetModelStatus()
	assert.Equal(t, ProviderOllama, status.Provider)
	assert.Equal(t, "tinyllama:latest", status.Model, "status carries the adopted tag")
	assert.True(t, status.Loaded)
	assert.Equal(t, "TinyLlama (Tiny)", g.CurrentModelInfo().DisplayName)
}

func TestGateway_SwitchModel_RollbackOnInitFailure(t *testing.T) {
	stub := &stubProvider{reply: "still here", info: mockModelInfo}
	g := newStubbedGateway(Config{
		Provider: ProviderMock,
		Model:    "mock",
		BaseURL:  "http://127.0.0.1:1",
	}, stub)

	res := g.SwitchModel(context.Background(), ProviderOllama, "phi")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Failed to switch to ollama:phi")
	assert.Equal(t, ProviderMock, res.Provider)
	assert.Equal(t, "mock", res.Model)

	// The gateway still answers after the failed switch
	status := g.GetModelStatus()
	assert.Equal(t, ProviderMock, status.Provider)
	assert.True(t, status.Loaded)
	reply := g.ProcessMessage(context.Background(), "are you alive?", "conv-1")
	assert.NotEmpty(t, reply)
}

func TestGateway_HealthCheck(t *testing.T) {
	t.Run("healthy provider", func(t *testing.T) {
		g := newStubbedGateway(Config{Provider: ProviderMock}, &stubProvider{healthy: true})
		assert.True(t, g.HealthCheck(context.Background()))
		assert.NotNil(t, g.GetModelStatus().LastHealthCheck)
	})

	t.Run("unhealthy provider", func(t *testing.T) {
		g := newStubbedGateway(Config{Provider: ProviderMock}, &stubProvider{healthy: false})
		assert.False(t, g.HealthCheck(context.Background()))
	})

	t.Run("uninitialized gateway", func(t *testing.T) {
		g := NewGateway(Config{Provider: ProviderMock})
		assert.False(t, g.HealthCheck(context.Background()))
		assert.Nil(t, g.GetModelStatus().LastHealthCheck)
	})
}

func TestGateway_GetAvailableModels(t *testing.T) {
	stub := &stubProvider{info: mockModelInfo}
	g := newStubbedGateway(Config{Provider: ProviderMock, Model: "mock"}, stub)

	models := g.GetAvailableModels()
	assert.Len(t, models.Ollama, len(ollamaCatalog))
	assert.Len(t, models.HuggingFace, len(huggingfaceCatalog))
	assert.Equal(t, ProviderMock, models.CurrentProvider)
	assert.Equal(t, mockModelInfo, models.CurrentModel)
}

func TestGateway_AverageResponseTime(t *testing.T) {
	stub := &stubProvider{reply: "ok"}
	g := newStubbedGateway(Config{Provider: ProviderMock}, stub)

	assert.Zero(t, g.AverageResponseTime())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.clock = func() time.Time {
		now = now.Add(100 * time.Millisecond)
		return now
	}

	g.ProcessMessage(context.Background(), "one", "c")
	g.ProcessMessage(context.Background(), "two", "c")

	assert.Equal(t, int64(2), g.MessageCount())
	assert.InDelta(t, 0.1, g.AverageResponseTime(), 0.001)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_MODEL_PROVIDER", "")
	t.Setenv("LLM_MODEL_NAME", "")
	t.Setenv("LLM_BASE_URL", "")
	t.Setenv("HF_API_TOKEN", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "phi", cfg.Model)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Empty(t, cfg.HFToken)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("LLM_MODEL_PROVIDER", "huggingface")
	t.Setenv("LLM_MODEL_NAME", "google/flan-t5-large")
	t.Setenv("LLM_BASE_URL", "http://ollama:11434")
	t.Setenv("HF_API_TOKEN", "hf_test")

	cfg := ConfigFromEnv()
	assert.Equal(t, ProviderHuggingFace, cfg.Provider)
	assert.Equal(t, "google/flan-t5-large", cfg.Model)
	assert.Equal(t, "http://ollama:11434", cfg.BaseURL)
	assert.Equal(t, "hf_test", cfg.HFToken)
}
