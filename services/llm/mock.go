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
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"
)

var mockModelInfo = ModelInfo{Name: "mock", DisplayName: "Mock Model", Size: "Test"}

// cannedReplies are the fixed responses the mock provider cycles through.
// Selection is a stable hash of the input, so the same message always gets
// the same reply.
var cannedReplies = []string{
	"Thank you for your message: '%s'. This is a mock response from the chat gateway.",
	"I understand you said: '%s'. I'm a demo chatbot answering from the deterministic backend!",
	"Hello! You mentioned: '%s'. This response is generated by the built-in stub provider.",
	"Interesting point about: '%s'. I'm standing in while no real model backend is configured.",
	"Thanks for sharing: '%s'. This reply demonstrates the gateway's offline mode.",
}

// MockProvider answers from a fixed response table without any network
// calls. It backs initialization fallback and offline testing.
type MockProvider struct {
	initDelay  time.Duration
	replyDelay time.Duration
}

// NewMockProvider creates a mock provider with realistic simulated delays.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		initDelay:  time.Second,
		replyDelay: 500 * time.Millisecond,
	}
}

// Initialize simulates model warm-up.
func (m *MockProvider) Initialize(ctx context.Context) error {
	slog.Info("Initializing mock provider")
	return sleepCtx(ctx, m.initDelay)
}

// GenerateReply returns a canned response chosen by a stable hash of the
// message, after a short simulated processing delay.
func (m *MockProvider) GenerateReply(ctx context.Context, message, contextWindow string) (string, error) {
	if err := sleepCtx(ctx, m.replyDelay); err != nil {
		return "", err
	}
	h := fnv.New32a()
	h.Write([]byte(message))
	// Reduce before converting so the index stays in range on 32-bit ints.
	idx := int(h.Sum32() % uint32(len(cannedReplies)))
	return fmt.Sprintf(cannedReplies[idx], message), nil
}

// HealthCheck always succeeds; there is nothing to probe.
func (m *MockProvider) HealthCheck(ctx context.Context) bool {
	return true
}

// Info returns the mock model metadata.
func (m *MockProvider) Info() ModelInfo {
	return mockModelInfo
}

// ActiveModel returns the fixed mock model name.
func (m *MockProvider) ActiveModel() string {
	return mockModelInfo.Name
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
