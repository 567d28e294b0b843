// Package model defines the provider-agnostic abstractions for talking to a
// chat model with tool calling.
//
// Model is the stateless adapter each provider implements (gemini, openai,
// anthropic). Backend and Conversation sit on top of it: a conversation is
// seeded with reconstructed history and accumulates every turn it sends, so
// callers only pass new parts. MockModel scripts responses for tests.
package model
