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
	"sort"
	"strings"
)

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	// Name is the canonical identifier the backend expects
	// (e.g. "deepseek-coder:6.7b", "google/flan-t5-large").
	Name string `json:"name"`

	// DisplayName is the human-readable label shown to clients.
	DisplayName string `json:"display_name"`

	// Size is a rough size class ("1.1B", "7B", "Large", ...).
	Size string `json:"size"`
}

// ollamaCatalog maps short model keys to the models the local Ollama
// backend is known to serve.
var ollamaCatalog = map[string]ModelInfo{
	"tinyllama":      {Name: "tinyllama", DisplayName: "TinyLlama (Tiny)", Size: "1.1B"},
	"phi":            {Name: "phi", DisplayName: "Phi-2 (Microsoft)", Size: "2.7B"},
	"llama2":         {Name: "llama2", DisplayName: "Llama 2 (Meta)", Size: "7B"},
	"deepseek-coder": {Name: "deepseek-coder:6.7b", DisplayName: "DeepSeek Coder", Size: "6.7B"},
	"codellama":      {Name: "codellama", DisplayName: "Code Llama (Meta)", Size: "7B"},
	"mistral":        {Name: "mistral", DisplayName: "Mistral 7B", Size: "7B"},
	"neural-chat":    {Name: "neural-chat", DisplayName: "Neural Chat (Intel)", Size: "7B"},
}

// huggingfaceCatalog maps repository ids to models available through the
// Hugging Face Inference API free tier.
var huggingfaceCatalog = map[string]ModelInfo{
	"microsoft/DialoGPT-large":             {Name: "microsoft/DialoGPT-large", DisplayName: "DialoGPT Large", Size: "Large"},
	"google/flan-t5-large":                 {Name: "google/flan-t5-large", DisplayName: "FLAN-T5 Large", Size: "Large"},
	"microsoft/DialoGPT-medium":            {Name: "microsoft/DialoGPT-medium", DisplayName: "DialoGPT Medium", Size: "Medium"},
	"deepseek-ai/deepseek-coder-1.3b-base": {Name: "deepseek-ai/deepseek-coder-1.3b-base", DisplayName: "DeepSeek Coder 1.3B", Size: "1.3B"},
}

// Catalog returns the known-model table for a provider kind. The mock
// provider has no catalog; any name is accepted there.
func Catalog(kind ProviderKind) map[string]ModelInfo {
	switch kind {
	case ProviderOllama:
		return ollamaCatalog
	case ProviderHuggingFace:
		return huggingfaceCatalog
	}
	return nil
}

// CatalogModels returns the catalog entries for a provider kind sorted by
// key, for stable listing in API responses.
func CatalogModels(kind ProviderKind) []ModelInfo {
	catalog := Catalog(kind)
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	models := make([]ModelInfo, 0, len(keys))
	for _, k := range keys {
		models = append(models, catalog[k])
	}
	return models
}

// ResolveModel checks a requested model name against a provider's catalog.
//
// Three equivalence rules are tried in order:
//  1. exact catalog key match,
//  2. match against a model's canonical Name,
//  3. catalog key equals the requested name with its version suffix
//     stripped, or the requested name has a catalog key as prefix.
//
// Returns the catalog entry and true on a match. The mock provider matches
// any name.
func ResolveModel(kind ProviderKind, name string) (ModelInfo, bool) {
	if kind == ProviderMock {
		return mockModelInfo, true
	}
	catalog := Catalog(kind)
	if catalog == nil {
		return ModelInfo{}, false
	}
	if info, ok := catalog[name]; ok {
		return info, true
	}
	base := baseModelName(name)
	for key, info := range catalog {
		if info.Name == name || key == base || strings.HasPrefix(name, key) {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// lookupInfo returns catalog metadata for name, falling back to a generic
// entry so unknown-but-served models still report something sensible.
func lookupInfo(kind ProviderKind, name string) ModelInfo {
	if info, ok := Catalog(kind)[baseModelName(name)]; ok {
		return info
	}
	if info, ok := Catalog(kind)[name]; ok {
		return info
	}
	return ModelInfo{Name: name, DisplayName: name, Size: "Unknown"}
}

// baseModelName strips an Ollama-style version suffix ("phi:latest" -> "phi").
func baseModelName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}
