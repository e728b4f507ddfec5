// Package memory implements SwarmMemory, an append-only, token-
// budgeted conversation log, and MemoryCompactor, which summarizes the
// oldest contiguous prefix once the running token total exceeds a soft
// limit. Loop adapts the compaction trigger into a background
// goroutine modeled on a periodic-plus-debounced consolidation cycle.
package memory
