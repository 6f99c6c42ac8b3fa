// Package model defines the provider-agnostic abstraction for language
// models used by the intent classifier and model-backed agents.
//
// Providers (OpenAI, Anthropic, Gemini) live in sub-packages and implement
// Model so higher layers stay decoupled from vendor SDKs. MockModel gives
// deterministic responses for tests and the offline demo mode.
package model
