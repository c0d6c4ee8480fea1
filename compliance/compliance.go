package compliance

// Mode selects how aggressively a resolution run rejects ambiguity.
//
// Strict mode prefers explicit failure over silent acceptance: a run
// whose functions carry warnings (unresolved owners, cycles, delay
// failures) is rejected. Permissive mode produces a resolution while
// surfacing those warnings explicitly.
type Mode int

const (
	Permissive Mode = iota
	Strict
)
