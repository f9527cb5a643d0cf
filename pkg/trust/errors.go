// Package trust implements the trust-scoring engine (spec §4.4c) and the
// agent pipeline state machine (spec §4.4d). Both use the same
// compare-and-swap-and-retry idiom the teacher uses for concurrent
// registry writers (pkg/trust/upgrade.go's UpgradeRegistry, generalized
// from a single mutex to an explicit CAS seam so a persisted store can
// plug in later without changing either engine's call shape).
package trust

import "errors"

var (
	// ErrDuplicateProof is returned when a proof's hash was already applied.
	ErrDuplicateProof = errors.New("trust: duplicate proof hash")
	// ErrCASExhausted is returned when compare-and-swap retries are exhausted
	// under sustained write contention on the same agent.
	ErrCASExhausted = errors.New("trust: compare-and-swap retries exhausted")
	// ErrIllegalTransition is returned when a requested stage transition
	// is not in the legal adjacency for the pipeline state machine.
	ErrIllegalTransition = errors.New("trust: illegal pipeline transition")
	// ErrGateFailed is returned when a blocking gate did not pass.
	ErrGateFailed = errors.New("trust: transition gate failed")
	// ErrForceRequiresPrivilege is returned when a forced override is
	// attempted by a non-privileged caller.
	ErrForceRequiresPrivilege = errors.New("trust: forced override requires a privileged caller")
)

const maxCASAttempts = 5
