// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm implements the model gateway: a closed set of interchangeable
// chat backends (Ollama, Hugging Face Inference API, deterministic mock),
// per-conversation context windows, and transactional provider switching.
package llm

import (
	"context"
	"time"
)

// ProviderKind identifies one of the supported chat backends.
type ProviderKind string

const (
	ProviderOllama      ProviderKind = "ollama"
	ProviderHuggingFace ProviderKind = "huggingface"
	ProviderMock        ProviderKind = "mock"
)

// Valid reports whether k names a known backend.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderOllama, ProviderHuggingFace, ProviderMock:
		return true
	}
	return false
}

// Provider is the interface every chat backend implements. There are exactly
// three implementations: OllamaProvider, HuggingFaceProvider, MockProvider.
// The Gateway selects one at configuration time and swaps it only through
// SwitchModel, never by branching on a provider name at call sites.
type Provider interface {
	// Initialize prepares the backend (probes, model pulls, catalog checks).
	// An error here means the backend cannot serve; the Gateway falls back
	// to the mock provider rather than staying uninitialized.
	Initialize(ctx context.Context) error

	// GenerateReply turns a user message plus serialized conversation
	// context into reply text. Implementations that degrade gracefully
	// (Hugging Face warming/failure) return user-visible text with a nil
	// error; hard protocol errors are returned for the Gateway to absorb.
	GenerateReply(ctx context.Context, message, contextWindow string) (string, error)

	// HealthCheck probes backend liveness. It never returns an error;
	// failures are logged and reported as false.
	HealthCheck(ctx context.Context) bool

	// Info returns metadata for the model the backend is serving.
	Info() ModelInfo

	// ActiveModel returns the exact model name the backend is serving,
	// which may differ from the requested name once initialization has
	// resolved it (e.g. an Ollama tag like "phi:latest").
	ActiveModel() string
}

// Outbound call budgets. Probes are short, generation is moderate, and a
// model pull can legitimately take minutes on a cold cache.
const (
	probeTimeout      = 10 * time.Second
	healthTimeout     = 5 * time.Second
	pullTimeout       = 5 * time.Minute
	generateTimeout   = 3 * time.Minute
	hfGenerateTimeout = 30 * time.Second
	hfHealthTimeout   = 10 * time.Second
)
