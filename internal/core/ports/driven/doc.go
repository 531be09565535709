// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Generates vector embeddings
//   - VectorStore: Persists embedding records and answers similarity queries
//   - LLMService: Language model generation (at least one provider)
//
// # Optional Interfaces
//
//   - ConfigStore: Application configuration persistence. Without it,
//     compiled-in defaults apply.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
