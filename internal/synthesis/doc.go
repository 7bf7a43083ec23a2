// Package synthesis turns an evidence bundle into a renewal brief.
//
// A request moves through a fixed sequence of states:
//
//	Idle -> GuardCheck -> (Blocked | Extracting -> Synthesizing -> Validating
//	     -> Repairing? -> Finalizing) -> Done
//
// The contract text is screened by the injection guard before anything else
// reads it. Extraction is deterministic. Synthesis only runs with an
// LLM-backed provider and budget headroom; every LLM failure falls back to
// the heuristic brief built from extracted fields. Before the brief is
// returned, sections without citations are reset to their empty defaults.
//
// Only two errors reach the caller: ErrMissingContract and
// ErrInjectionDetected. Both the success and the blocked path emit one
// audit record.
package synthesis
