// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry tracks live client transports and delivers messages to
// them without letting a single broken transport stall the others.
package registry

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Transport is the minimal surface the registry needs from a live client
// connection. The WebSocket handler wraps *websocket.Conn behind it; tests
// use in-memory fakes.
type Transport interface {
	// SendText writes one text payload to the client.
	SendText(payload string) error

	// Close tears the connection down.
	Close() error
}

// Session is the registry-tracked record of one live client transport.
type Session struct {
	ClientID     string
	ConnectedAt  time.Time
	LastActivity time.Time
	MessagesSent int
	transport    Transport
}

// ClientInfo is the exported snapshot of one session's metadata.
type ClientInfo struct {
	ClientID     string    `json:"client_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	MessagesSent int       `json:"messages_sent"`
	Connected    bool      `json:"is_connected"`
}

// Stats is the full registry snapshot.
type Stats struct {
	ActiveConnections int          `json:"active_connections"`
	TotalServed       int64        `json:"total_connections_served"`
	Clients           []ClientInfo `json:"clients"`
	Timestamp         time.Time    `json:"timestamp"`
}

// welcomeFrame is the synchronous system message sent on connect.
type welcomeFrame struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id"`
}

// pingFrame is the connectivity probe broadcast by the sweeper.
type pingFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry owns the set of live sessions. All methods are safe for
// concurrent use; the mutex guards the session map, and sends happen
// outside it so one slow client never blocks the map.
//
// A session exists in the registry iff its transport is open as far as the
// registry knows: a failed send is taken as proof of a dead connection and
// removes the session instead of retrying.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	totalServed int64
	clock       func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		clock:    time.Now,
	}
}

// Connect installs a session for an already-accepted transport and sends
// the welcome message (which counts toward the session's MessagesSent).
//
// A reused client id silently replaces the previous entry without closing
// its transport; id uniqueness is the caller's responsibility.
func (r *Registry) Connect(t Transport, clientID string) *Session {
	now := r.clock()
	s := &Session{
		ClientID:     clientID,
		ConnectedAt:  now,
		LastActivity: now,
		transport:    t,
	}

	r.mu.Lock()
	r.sessions[clientID] = s
	r.totalServed++
	active := len(r.sessions)
	r.mu.Unlock()

	slog.Info("Client connected", "client_id", clientID, "active", active)

	welcome, _ := json.Marshal(welcomeFrame{
		Type:      "system",
		Message:   "Connected to the chat gateway. Start typing to chat.",
		Timestamp: now,
		ClientID:  clientID,
	})
	r.SendPersonal(clientID, string(welcome))
	return s
}

// Disconnect removes a session. Idempotent: unknown ids are a no-op.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	_, existed := r.sessions[clientID]
	delete(r.sessions, clientID)
	active := len(r.sessions)
	r.mu.Unlock()

	if existed {
		slog.Info("Client disconnected", "client_id", clientID, "active", active)
	}
}

// SendPersonal delivers a payload to one client, best effort. A transport
// failure disconnects the client; it is never retried. Unknown clients are
// a no-op.
func (r *Registry) SendPersonal(clientID, payload string) {
	r.mu.RLock()
	s, ok := r.sessions[clientID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if err := s.transport.SendText(payload); err != nil {
		slog.Error("Error sending message to client", "client_id", clientID, "error", err)
		r.Disconnect(clientID)
		return
	}
	r.touch(clientID)
}

// Broadcast delivers a payload to every connected client except exclude
// (empty string excludes nobody). Failures are isolated per recipient:
// the failing client is disconnected after the sweep and delivery
// continues to everyone else.
func (r *Registry) Broadcast(payload string, exclude string) {
	r.mu.RLock()
	targets := make(map[string]Transport, len(r.sessions))
	for id, s := range r.sessions {
		if exclude != "" && id == exclude {
			continue
		}
		targets[id] = s.transport
	}
	r.mu.RUnlock()

	var failed []string
	for id, t := range targets {
		if err := t.SendText(payload); err != nil {
			slog.Error("Error broadcasting to client", "client_id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		r.touch(id)
	}
	for _, id := range failed {
		r.Disconnect(id)
	}

	slog.Debug("Broadcast complete", "recipients", len(targets)-len(failed), "failed", len(failed))
}

// Ping broadcasts a connectivity probe to all clients. Dead transports are
// reaped through the usual broadcast failure path.
func (r *Registry) Ping() {
	frame, _ := json.Marshal(pingFrame{Type: "ping", Timestamp: r.clock()})
	r.Broadcast(string(frame), "")
}

// CleanupStale disconnects sessions idle longer than timeout and returns
// how many were removed. It is driven by an external ticker (see Sweeper),
// not self-scheduled.
func (r *Registry) CleanupStale(timeout time.Duration) int {
	now := r.clock()

	r.mu.RLock()
	var stale []string
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity) > timeout {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		slog.Info("Removing stale connection", "client_id", id)
		r.Disconnect(id)
	}
	return len(stale)
}

// touch updates send metadata for a still-registered session.
func (r *Registry) touch(clientID string) {
	r.mu.Lock()
	if s, ok := r.sessions[clientID]; ok {
		s.MessagesSent++
		s.LastActivity = r.clock()
	}
	r.mu.Unlock()
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TotalServed returns the lifetime connection counter.
func (r *Registry) TotalServed() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalServed
}

// Info returns the metadata snapshot for one client.
func (r *Registry) Info(clientID string) (ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[clientID]
	if !ok {
		return ClientInfo{}, false
	}
	return infoOf(s), true
}

// AllInfo returns metadata snapshots for every client.
func (r *Registry) AllInfo() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ClientInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, infoOf(s))
	}
	return infos
}

// StatsSnapshot returns the full registry snapshot.
func (r *Registry) StatsSnapshot() Stats {
	return Stats{
		ActiveConnections: r.ActiveCount(),
		TotalServed:       r.TotalServed(),
		Clients:           r.AllInfo(),
		Timestamp:         r.clock(),
	}
}

func infoOf(s *Session) ClientInfo {
	return ClientInfo{
		ClientID:     s.ClientID,
		ConnectedAt:  s.ConnectedAt,
		LastActivity: s.LastActivity,
		MessagesSent: s.MessagesSent,
		Connected:    true,
	}
}
