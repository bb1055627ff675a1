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
	"strings"
	"sync"
	"time"
)

// contextWindowTurns is how many trailing turns are serialized into the
// prompt context for providers that accept conversation history.
const contextWindowTurns = 5

// emptyContextSentinel is used when a conversation has no history yet.
const emptyContextSentinel = "This is the start of a new conversation."

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// conversation is an append-only turn history. Its mutex serializes appends
// so concurrent calls on the same conversation id never interleave a
// half-written turn.
type conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// ConversationStore holds every conversation seen by the gateway, keyed by
// an opaque conversation id. Conversations are created lazily on first use
// and live for the process lifetime; there is no eviction policy.
//
// The store-level RWMutex guards the map structure only. Turn appends are
// serialized per conversation, so traffic on distinct ids never contends.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	clock         func() time.Time
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*conversation),
		clock:         time.Now,
	}
}

// get returns the conversation for id, creating it on first reference.
func (s *ConversationStore) get(id string) *conversation {
	s.mu.RLock()
	c, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.conversations[id]; ok {
		return c
	}
	c = &conversation{}
	s.conversations[id] = c
	return c
}

// Append records one turn at the tail of the conversation and returns it.
// Turns are never reordered or mutated after append.
func (s *ConversationStore) Append(id, role, content string) Turn {
	c := s.get(id)
	turn := Turn{Role: role, Content: content, Timestamp: s.clock()}
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.mu.Unlock()
	return turn
}

// Turns returns a copy of the full history for id. Unknown ids yield nil.
func (s *ConversationStore) Turns(id string) []Turn {
	s.mu.RLock()
	c, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Count returns the number of conversations currently held.
func (s *ConversationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// BuildContext serializes the last contextWindowTurns turns of id as
// "Role: content" lines, newline-joined, in original order. An empty or
// unknown conversation yields the new-conversation sentinel.
func (s *ConversationStore) BuildContext(id string) string {
	turns := s.Turns(id)
	if len(turns) == 0 {
		return emptyContextSentinel
	}
	if len(turns) > contextWindowTurns {
		turns = turns[len(turns)-contextWindowTurns:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, titleRole(t.Role)+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// titleRole capitalizes a role tag for prompt context ("user" -> "User").
func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
