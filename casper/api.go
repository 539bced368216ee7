package casper

import (
	"math/rand"
)

// Protocol is the capability shared by the CBC-Casper variants. It fixes the
// shape of an estimate, when two messages conflict and how a view turns its
// latest messages into a fork-choice. Implementations must be stateless and
// deterministic.
type Protocol interface {
	// Name identifies the variant. Messages and views only interoperate with
	// others of the same name.
	Name() string
	// ValidateEstimate returns an error wrapping ErrInvalidEstimate if the
	// estimate does not have the shape expected by this protocol.
	ValidateEstimate(estimate Estimate) error
	// Conflicts reports whether two messages of this protocol disagree. Both
	// messages carry estimates accepted by ValidateEstimate.
	Conflicts(one, other *Message) bool
	// Estimate computes the fork-choice from the latest honest message of each
	// validator. The mapping is never empty.
	Estimate(latest LatestMessages, validators *ValidatorSet) (Estimate, error)
	// Height derives the display height of a message carrying the given
	// estimate and justification.
	Height(estimate Estimate, justification Justification) uint64
	// InitialEstimate returns the estimate a validator votes for before it has
	// seen any message. A nil rng yields a deterministic default.
	InitialEstimate(rng *rand.Rand) Estimate
}

// ChainProtocol is implemented by protocols whose estimate names a chain of
// messages. Views check that chain for safety, instead of the latest message of
// each validator.
type ChainProtocol interface {
	Protocol
	// FinalityCandidates lists the messages an estimate builds on, most recent
	// first. Each message in the list extends every message after it.
	FinalityCandidates(estimate Estimate) []*Message
}

// Tracer collects trace logs that capture logical state changes.
// The primary purpose of Tracer is to aid debugging and simulation.
type Tracer interface {
	Log(format string, args ...any)
}

type noopTracer struct{}

func (noopTracer) Log(string, ...any) {}
