// Package tdbcore implements an embedded, in-memory and file-backed
// columnar database engine: a hierarchy of persistent Arrays packing
// typed values with bit-width-minimal encoding, Tables composing those
// Arrays into same-length columns, Groups naming Tables inside one
// backing region, and a Query layer for building predicates over
// columns. Mutation is single-threaded; readers may hold independent
// snapshots by cloning a Group's byte region.
//
// The storage primitives (Array, Column, AdaptiveStringColumn) live in
// internal/structures; the region allocator and backing-store
// abstraction live in internal/writer; on-disk structure encoding lives
// in internal/core. This package is the public surface: Group, Table,
// Query and Cursor.
package tdbcore
