// Package session owns the on-disk workspace for one export: sequentially
// numbered frame images, an optional audio blob, and the transient encode
// output. A Session is an explicit object rather than process-global state;
// the exporter that creates it is the only writer.
//
// Frame indices form a contiguous range starting at zero. The encoder reads
// frames through a fixed numeric filename pattern, so a gap silently
// truncates the sequence at the first missing index — the batch writer never
// skips an index.
package session
