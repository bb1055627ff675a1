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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var hfTracer = otel.Tracer("aleutian.chat.llm.huggingface")

const defaultHFAPIBase = "https://api-inference.huggingface.co/models"

// warmingUpReply is returned when the hosted model answers 503: the model
// is loading on the inference side, which is a retry-later condition for
// the user, not an error for the gateway.
const warmingUpReply = "The model is currently loading. Please try again in a moment."

// HuggingFaceProvider talks to the Hugging Face Inference API with an
// optional bearer token. Payload shape is chosen by model-family heuristics
// (seq2seq Q&A, dialogue history, generic instruction).
//
// Hard generation failures are absorbed into an apologetic user-visible
// reply rather than propagated: the hosted path degrades, it never breaks
// the caller's turn.
type HuggingFaceProvider struct {
	httpClient *http.Client
	apiBase    string
	token      string
	model      string
	info       ModelInfo
}

type hfParameters struct {
	MaxLength      int     `json:"max_length"`
	Temperature    float32 `json:"temperature"`
	DoSample       bool    `json:"do_sample,omitempty"`
	ReturnFullText *bool   `json:"return_full_text,omitempty"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFaceProvider creates a provider for the given model. The token
// may be empty; unauthenticated calls work with tighter rate limits.
func NewHuggingFaceProvider(model, token string) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		httpClient: &http.Client{Timeout: hfGenerateTimeout},
		apiBase:    defaultHFAPIBase,
		token:      token,
		model:      model,
		info:       lookupInfo(ProviderHuggingFace, model),
	}
}

// Initialize validates the model against the known catalog. An unknown
// model is a warning, not a failure: the API may still serve it.
func (h *HuggingFaceProvider) Initialize(ctx context.Context) error {
	if info, ok := huggingfaceCatalog[h.model]; ok {
		h.info = info
		slog.Info("Hugging Face provider ready", "model", h.model)
		return nil
	}
	slog.Warn("Hugging Face model not in predefined list, using anyway", "model", h.model)
	h.info = ModelInfo{Name: h.model, DisplayName: h.model, Size: "Unknown"}
	return nil
}

// GenerateReply posts an inference request shaped for the model family and
// extracts the generated text. Three outcomes: success (echoed prompt
// stripped), warming up (503, retry-later text), and hard failure
// (apologetic text carrying the error detail). The last two return nil
// errors on purpose; see the type comment.
func (h *HuggingFaceProvider) GenerateReply(ctx context.Context, message, contextWindow string) (string, error) {
	ctx, span := hfTracer.Start(ctx, "HuggingFaceProvider.GenerateReply")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", h.model))

	reply, err := h.generate(ctx, message, contextWindow)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Hugging Face processing error", "error", err)
		return fmt.Sprintf("I apologize, but I'm having trouble processing your message right now. Error: %v", err), nil
	}
	return reply, nil
}

func (h *HuggingFaceProvider) generate(ctx context.Context, message, contextWindow string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, hfGenerateTimeout)
	defer cancel()

	payload, prompt := h.buildPayload(message, contextWindow)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.apiBase+"/"+h.model, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Hugging Face API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read inference response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return extractGeneratedText(respBody, prompt), nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		slog.Info("Hugging Face model warming up", "model", h.model)
		return warmingUpReply, nil
	default:
		slog.Error("Hugging Face API error", "status_code", resp.StatusCode,
			"response", string(respBody))
		return "", fmt.Errorf("Hugging Face API error: %d", resp.StatusCode)
	}
}

// buildPayload selects the request shape by model family and returns it
// together with the prompt text, so echoed prompts can be stripped from
// the generation.
func (h *HuggingFaceProvider) buildPayload(message, contextWindow string) (hfRequest, string) {
	lower := strings.ToLower(h.model)
	noEcho := false
	switch {
	case strings.Contains(lower, "flan-t5"):
		// Seq2seq models answer a framed question; no history.
		prompt := "Question: " + message
		return hfRequest{
			Inputs: prompt,
			Parameters: hfParameters{
				MaxLength:   200,
				Temperature: 0.7,
				DoSample:    true,
			},
		}, prompt
	case strings.Contains(lower, "dialogpt"):
		prompt := "User: " + message + "\nBot:"
		if contextWindow != "" && contextWindow != emptyContextSentinel {
			prompt = contextWindow + "\n" + prompt
		}
		return hfRequest{
			Inputs: prompt,
			Parameters: hfParameters{
				MaxLength:      100,
				Temperature:    0.7,
				ReturnFullText: &noEcho,
			},
		}, prompt
	default:
		prompt := "User: " + message + "\nAssistant:"
		return hfRequest{
			Inputs: prompt,
			Parameters: hfParameters{
				MaxLength:      150,
				Temperature:    0.7,
				ReturnFullText: &noEcho,
			},
		}, prompt
	}
}

// extractGeneratedText pulls generated text out of the list-shaped
// inference response and strips any echoed prompt prefix.
func extractGeneratedText(respBody []byte, prompt string) string {
	var generations []hfGeneration
	if err := json.Unmarshal(respBody, &generations); err != nil || len(generations) == 0 {
		return "I received your message but couldn't generate a proper response."
	}
	text := generations[0].GeneratedText
	if prompt != "" {
		text = strings.Replace(text, prompt, "", 1)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "I understand, but I don't have a specific response right now."
	}
	return text
}

// HealthCheck issues a minimal inference call. Both 200 and 503 (model
// warming) count as healthy.
func (h *HuggingFaceProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, hfHealthTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"inputs": "Hello"})
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.apiBase+"/"+h.model, bytes.NewBuffer(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		slog.Error("Hugging Face health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusServiceUnavailable
}

// Info returns metadata for the active model.
func (h *HuggingFaceProvider) Info() ModelInfo {
	return h.info
}

// ActiveModel returns the repository id being served.
func (h *HuggingFaceProvider) ActiveModel() string {
	return h.model
}
