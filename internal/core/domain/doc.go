// Package domain contains the core entities and value types of tabletalk.
//
// Domain types are plain Go structs with no behaviour beyond validation
// and derivation helpers. They carry no dependencies on adapters or
// external libraries and can be used by any layer.
package domain
