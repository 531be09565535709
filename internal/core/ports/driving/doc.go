// Package driving defines the interfaces external actors use to drive the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI adapter calls these; core services implement them. The core
// mandates no wire format: (de)serialisation, file handling and session
// expiry belong to the caller.
package driving
