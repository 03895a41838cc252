// Package model defines the provider‑agnostic abstractions for the
// completion providers invoked by canvas completion nodes.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Report token usage so runs can keep a per-model cost ledger
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the graph kernel stays decoupled from vendor SDKs.
package model
