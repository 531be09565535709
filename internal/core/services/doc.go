// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO and no direct file access:
// everything they know about a dataset comes from the vector store.
package services
