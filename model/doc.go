// Package model defines the provider-agnostic adapter contract between the
// engine and language-model backends, plus a scripted mock implementation for
// tests and examples. Concrete adapters live in the subpackages (openai,
// anthropic); each converts the normalized Request/Response shapes to its
// vendor wire format internally.
package model
