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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ollamaTracer = otel.Tracer("aleutian.chat.llm.ollama")

// OllamaProvider talks to a local Ollama server over HTTP.
//
// Initialize probes the server version, checks the model is present in the
// local tag list, and pulls it when missing. Generation is a single
// non-streaming /api/generate call built from the conversation context.
type OllamaProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
	info       ModelInfo
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaPullRequest struct {
	Name string `json:"name"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// NewOllamaProvider creates a provider for the given base URL and model.
// No network calls happen until Initialize.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &OllamaProvider{
		// The client timeout is the pull budget; shorter per-call budgets
		// come from request contexts.
		httpClient: &http.Client{Timeout: pullTimeout},
		baseURL:    baseURL,
		model:      model,
		info:       lookupInfo(ProviderOllama, model),
	}
}

// Initialize verifies the Ollama server is reachable and the model is
// available, pulling it when absent. When the tag list carries a versioned
// name (e.g. "phi:latest") the exact tag is adopted as the active model.
func (o *OllamaProvider) Initialize(ctx context.Context) error {
	ctx, span := ollamaTracer.Start(ctx, "OllamaProvider.Initialize")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	if err := o.probeVersion(ctx, probeTimeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ollama service not accessible: %w", err)
	}

	available, err := o.listTags(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	found := false
	for _, name := range available {
		if strings.Contains(name, o.model) || strings.HasPrefix(name, o.model) {
			o.model = name // adopt the exact tag
			found = true
			break
		}
	}
	if !found {
		slog.Warn("Ollama model not found locally, pulling",
			"model", o.model, "available", available)
		if err := o.pullModel(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	o.info = lookupInfo(ProviderOllama, o.model)
	slog.Info("Ollama provider ready", "base_url", o.baseURL, "model", o.model)
	return nil
}

// GenerateReply posts a single non-streaming completion request built from
// the serialized context and the new message.
func (o *OllamaProvider) GenerateReply(ctx context.Context, message, contextWindow string) (string, error) {
	ctx, span := ollamaTracer.Start(ctx, "OllamaProvider.GenerateReply")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	payload := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: fmt.Sprintf("Context: %s\nUser: %s\nAssistant:", contextWindow, message),
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request to Ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ollama API call failed", "error", err)
		return "", fmt.Errorf("Ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Ollama returned an error", "status_code", resp.StatusCode,
			"response", string(respBody))
		return "", fmt.Errorf("Ollama API error: %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	if genResp.Response == "" {
		return "No response generated", nil
	}
	return genResp.Response, nil
}

// HealthCheck hits the version endpoint with a short budget.
func (o *OllamaProvider) HealthCheck(ctx context.Context) bool {
	if err := o.probeVersion(ctx, healthTimeout); err != nil {
		slog.Error("Ollama health check failed", "error", err)
		return false
	}
	return true
}

// Info returns metadata for the active model.
func (o *OllamaProvider) Info() ModelInfo {
	return o.info
}

// ActiveModel returns the exact tag adopted during initialization.
func (o *OllamaProvider) ActiveModel() string {
	return o.model
}

func (o *OllamaProvider) probeVersion(ctx context.Context, budget time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("version probe returned status %d", resp.StatusCode)
	}
	return nil
}

func (o *OllamaProvider) listTags(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list Ollama models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tag listing returned status %d", resp.StatusCode)
	}
	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama tag list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// pullModel fetches the model onto the server. Long-running; bounded by the
// pull budget rather than the probe budget.
func (o *OllamaProvider) pullModel(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	body, err := json.Marshal(ollamaPullRequest{Name: o.model})
	if err != nil {
		return fmt.Errorf("failed to marshal pull request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/pull", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model pull failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to pull model %s: %s", o.model, string(respBody))
	}
	slog.Info("Successfully pulled model", "model", o.model)
	return nil
}
