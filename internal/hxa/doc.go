// Package hxa owns the HxA binary asset codec.
//
// Ownership boundary:
// - in-memory node graph (files, nodes, metadata, layer stacks)
// - decode and encode of whole files held in memory
// - structural invariants: layer lengths, hard conventions, polygon terminators
//
// File I/O, inspection, and transport live with the callers.
package hxa
