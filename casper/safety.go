package casper

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/filecoin-project/go-bitfield"
)

// SafetyResult is the outcome of a clique-based safety check.
type SafetyResult struct {
	// FaultTolerance is 2*CliqueWeight - total weight: the weight in excess of
	// a majority that agrees on the candidate. Positive means safe.
	FaultTolerance Weight
	// CliqueWeight is the summed weight of the clique.
	CliqueWeight Weight
	// CliqueSize is the number of validators in the clique.
	CliqueSize int
	// Clique holds the indexes of clique members in the sorted validator set.
	Clique bitfield.BitField
	// Approximate is set if the search bound was hit, in which case the clique
	// is valid but not necessarily of maximum weight.
	Approximate bool
	// Steps is the number of search frames explored.
	Steps int
}

// IsSafe checks whether the candidate is finalized for the observer.
func (r SafetyResult) IsSafe() bool { return r.FaultTolerance > 0 }

// SafetyOracle estimates how much adversarial weight it would take to change
// an observer's mind about a candidate message.
//
// Validators whose latest honest message agrees with the candidate form the
// nodes of a graph, with an edge between two validators whose latest messages
// do not conflict with each other. The oracle searches that graph for a
// maximum-weight clique using an iterative branch and bound. The search is
// exponential in the number of agreeing validators in the worst case; it is
// meant for validator sets in the tens, and WithMaxCliqueSearchSteps caps the
// work for larger ones at the cost of an approximate, lower-bound result.
type SafetyOracle struct {
	opts *options
}

// NewSafetyOracle creates a safety oracle configured by the given options.
func NewSafetyOracle(o ...Option) (*SafetyOracle, error) {
	opts, err := newOptions(o...)
	if err != nil {
		return nil, err
	}
	return &SafetyOracle{opts: opts}, nil
}

type cliqueNode struct {
	id     ValidatorID
	index  int
	weight Weight
	latest *Message
}

// CheckEstimateSafety computes the maximum-weight clique of validators that
// agree with candidate in view, and the resulting fault tolerance relative to
// the total weight of validators.
func (o *SafetyOracle) CheckEstimateSafety(candidate *Message, view *View, validators *ValidatorSet) (SafetyResult, error) {
	switch {
	case candidate == nil:
		return SafetyResult{}, ErrNilMessage
	case view == nil:
		return SafetyResult{}, fmt.Errorf("view cannot be nil")
	case validators == nil:
		return SafetyResult{}, fmt.Errorf("validator set cannot be nil")
	case candidate.protocol.Name() != view.protocol.Name():
		return SafetyResult{}, fmt.Errorf("%s candidate in %s view: %w", candidate.protocol.Name(), view.protocol.Name(), ErrIncompatibleProtocols)
	}

	latest := view.LatestHonestMessages()
	nodes := make([]cliqueNode, 0, len(latest))
	for index, v := range validators.sorted {
		m, found := latest[v.id]
		if !found || view.protocol.Conflicts(candidate, m) {
			continue
		}
		nodes = append(nodes, cliqueNode{id: v.id, index: index, weight: v.weight, latest: m})
	}
	// Heaviest first tightens the bound early.
	slices.SortStableFunc(nodes, func(one, other cliqueNode) int {
		return cmp.Compare(other.weight, one.weight)
	})

	adjacent := make([][]bool, len(nodes))
	for i := range adjacent {
		adjacent[i] = make([]bool, len(nodes))
	}
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if o.agree(candidate, view, nodes[i], nodes[j]) {
				adjacent[i][j], adjacent[j][i] = true, true
			}
		}
	}

	weights := make([]Weight, len(nodes))
	for i, n := range nodes {
		weights[i] = n.weight
	}
	members, cliqueWeight, steps, approximate := o.maxWeightClique(weights, adjacent)

	indexes := make([]uint64, len(members))
	for i, member := range members {
		indexes[i] = uint64(nodes[member].index)
	}
	slices.Sort(indexes)
	result := SafetyResult{
		FaultTolerance: 2*cliqueWeight - validators.TotalWeight(),
		CliqueWeight:   cliqueWeight,
		CliqueSize:     len(members),
		Clique:         bitfield.NewFromSet(indexes),
		Approximate:    approximate,
		Steps:          steps,
	}

	metrics.cliqueSearchSteps.Record(context.Background(), int64(steps), attrProtocol(view.protocol))
	if approximate {
		metrics.approximations.Add(context.Background(), 1, attrProtocol(view.protocol))
		log.Debugw("clique search bound reached", "candidate", candidate, "steps", steps)
	}
	o.opts.tracer.Log("safety of %v: clique %d/%d fault tolerance %d", candidate, result.CliqueSize, len(nodes), result.FaultTolerance)
	return result, nil
}

// agree decides whether two validators that both agree with the candidate are
// connected in the clique graph.
func (o *SafetyOracle) agree(candidate *Message, view *View, one, other cliqueNode) bool {
	if view.protocol.Conflicts(one.latest, other.latest) {
		return false
	}
	if !o.opts.mutualVisibility {
		return true
	}
	return sawAgreeing(candidate, view, one, other) && sawAgreeing(candidate, view, other, one)
}

// sawAgreeing checks that observer's latest message cites a message from
// subject agreeing with the candidate, and that the view holds no later
// message from subject that disagrees.
func sawAgreeing(candidate *Message, view *View, observer, subject cliqueNode) bool {
	cited, found := observer.latest.justification.Get(subject.id)
	if !found || view.protocol.Conflicts(candidate, cited) {
		return false
	}
	for _, later := range view.bySender[subject.id] {
		if later.sequenceNumber > cited.sequenceNumber && view.protocol.Conflicts(candidate, later) {
			return false
		}
	}
	return true
}

// maxWeightClique finds a maximum-weight clique by depth-first branch and
// bound over an explicit stack. Nodes are considered in index order; a frame
// extends its clique only with candidates that come later and are adjacent to
// every member, so each clique is enumerated once. A branch is pruned when its
// weight plus the weight of all its remaining candidates cannot beat the best
// clique found so far. No recursion is used, so the search depth is bounded
// only by the number of nodes.
func (o *SafetyOracle) maxWeightClique(weights []Weight, adjacent [][]bool) (best []int, bestWeight Weight, steps int, approximate bool) {
	type frame struct {
		members    []int
		weight     Weight
		candidates []int
	}
	all := make([]int, len(weights))
	for i := range all {
		all[i] = i
	}
	stack := []frame{{candidates: all}}
	for len(stack) > 0 {
		if o.opts.maxCliqueSearchSteps > 0 && steps >= o.opts.maxCliqueSearchSteps {
			approximate = true
			break
		}
		steps++
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.weight > bestWeight {
			best, bestWeight = f.members, f.weight
		}
		remaining := make([]Weight, len(f.candidates)+1)
		for i := len(f.candidates) - 1; i >= 0; i-- {
			remaining[i] = remaining[i+1] + weights[f.candidates[i]]
		}
		// Push in reverse so that the heaviest candidate is explored first.
		for i := len(f.candidates) - 1; i >= 0; i-- {
			if f.weight+remaining[i] <= bestWeight {
				continue
			}
			c := f.candidates[i]
			var next []int
			for _, d := range f.candidates[i+1:] {
				if adjacent[c][d] {
					next = append(next, d)
				}
			}
			members := append(slices.Clone(f.members), c)
			stack = append(stack, frame{members: members, weight: f.weight + weights[c], candidates: next})
		}
	}
	return best, bestWeight, steps, approximate
}
