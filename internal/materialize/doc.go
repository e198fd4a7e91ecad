// Package materialize executes a read: it drives a layout's transfers,
// fetches and decodes each chunk once, and copies the selected elements
// into the output buffer.
//
// Chunks that were never written are not read; their part of the output
// is filled with the fill value. Transfers write disjoint parts of the
// output, so with a concurrency above one they run on a bounded worker
// pool without locking. Cancellation is checked between chunks; a chunk
// copy that has started always completes. A read either returns the full
// buffer or an error, never a partially filled buffer.
package materialize
