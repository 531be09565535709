// Package sqlite provides the persistent vector store backend.
//
// Embeddings are stored as little-endian float32 blobs alongside chunk
// text and JSON metadata. Similarity queries scan the collection and
// score with cosine similarity in Go; for the dataset sizes tabletalk
// targets this is faster than maintaining an index.
//
// The declared vector dimension is persisted in store_meta so a store
// created for one embedding model cannot silently serve another.
package sqlite
