package scenario

import (
	"fmt"
	"slices"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/protocol/blockchain"
	"github.com/filecoin-project/go-casper/sim"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("casper/scenario")

var _ Handler = (*Interpreter)(nil)

// SafeBlock is a block of the global view found safe by a report.
type SafeBlock struct {
	Name           string
	Block          *casper.Message
	FaultTolerance casper.Weight
	CliqueSize     int
}

// Snapshot captures the global view at the time of an R command.
type Snapshot struct {
	Estimate casper.Estimate
	Messages int
	Safe     []SafeBlock
}

// Interpreter runs scripts against a network of validators. Every validator
// starts with its own genesis message, which it has not sent to anyone.
type Interpreter struct {
	validators *casper.ValidatorSet
	network    *sim.Network
	oracle     *casper.SafetyOracle

	blocks map[string]*casper.Message
	names  map[cid.Cid]string
	// generated counts names made up for the intermediate blocks of round
	// robins.
	generated int
	reports   []Snapshot
}

// NewInterpreter creates validators with the given weights running protocol.
// The options apply to the validators' views and the oracle used by reports.
func NewInterpreter(protocol casper.Protocol, weights map[casper.ValidatorID]casper.Weight, o ...casper.Option) (*Interpreter, error) {
	validators, err := casper.NewValidatorSet(protocol, weights, o...)
	if err != nil {
		return nil, err
	}
	network, err := sim.NewNetwork(validators, sim.WithCasperOptions(o...))
	if err != nil {
		return nil, err
	}
	oracle, err := casper.NewSafetyOracle(o...)
	if err != nil {
		return nil, err
	}
	if _, err := network.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing validators: %w", err)
	}
	return &Interpreter{
		validators: validators,
		network:    network,
		oracle:     oracle,
		blocks:     make(map[string]*casper.Message),
		names:      make(map[cid.Cid]string),
	}, nil
}

// Run parses the script and executes its tokens in order, stopping at the
// first error. Nothing is executed if the script is malformed.
func (in *Interpreter) Run(script string) error {
	tokens, err := Parse(script)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if err := in.Execute(token); err != nil {
			return fmt.Errorf("executing %v: %w", token, err)
		}
	}
	return nil
}

// Execute runs a single token.
func (in *Interpreter) Execute(token Token) error { return Dispatch(in, token) }

func (in *Interpreter) Network() *sim.Network { return in.network }

// Block returns the block produced under the given name.
func (in *Interpreter) Block(name string) (*casper.Message, error) {
	block, found := in.blocks[name]
	if !found {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownBlock)
	}
	return block, nil
}

// Reports returns the snapshots recorded by R commands so far, in order.
func (in *Interpreter) Reports() []Snapshot { return slices.Clone(in.reports) }

func (in *Interpreter) validator(id casper.ValidatorID) (*casper.Validator, error) {
	return in.validators.Get(id)
}

func (in *Interpreter) MakeBlock(id casper.ValidatorID, name string) error {
	if _, found := in.blocks[name]; found {
		return fmt.Errorf("%s: %w", name, ErrBlockExists)
	}
	block, err := in.network.GetMessageFromValidator(id)
	if err != nil {
		return err
	}
	in.blocks[name] = block
	in.names[block.ID()] = name
	log.Debugw("block made", "validator", id, "name", name, "height", block.Height(), "estimate", block.Estimate())
	return nil
}

func (in *Interpreter) SendBlock(id casper.ValidatorID, name string) error {
	block, err := in.Block(name)
	if err != nil {
		return err
	}
	return in.network.PropagateMessageToValidator(block, id)
}

// finalized updates the safe estimates of a validator and returns its last
// finalized message along with the named block.
func (in *Interpreter) finalized(id casper.ValidatorID, name string) (finalized, block *casper.Message, err error) {
	v, err := in.validator(id)
	if err != nil {
		return nil, nil, err
	}
	if block, err = in.Block(name); err != nil {
		return nil, nil, err
	}
	if finalized, err = v.UpdateSafeEstimates(); err != nil {
		return nil, nil, err
	}
	return finalized, block, nil
}

// CheckSafety asserts that the validator has not finalized anything
// conflicting with the named block. It holds while nothing is finalized.
func (in *Interpreter) CheckSafety(id casper.ValidatorID, name string) error {
	finalized, block, err := in.finalized(id, name)
	if err != nil || finalized == nil {
		return err
	}
	conflicting, err := block.ConflictsWith(finalized)
	if err != nil {
		return err
	}
	if conflicting {
		return fmt.Errorf("validator %d finalized %v, conflicting with %s: %w", id, finalized, name, ErrAssertion)
	}
	return nil
}

// CheckNoSafety asserts that the validator has not finalized the named block
// or anything agreeing with it. It holds while nothing is finalized.
func (in *Interpreter) CheckNoSafety(id casper.ValidatorID, name string) error {
	finalized, block, err := in.finalized(id, name)
	if err != nil || finalized == nil {
		return err
	}
	conflicting, err := block.ConflictsWith(finalized)
	if err != nil {
		return err
	}
	if !conflicting {
		return fmt.Errorf("validator %d finalized %v, agreeing with %s: %w", id, finalized, name, ErrAssertion)
	}
	return nil
}

func (in *Interpreter) CheckHead(id casper.ValidatorID, name string) error {
	v, err := in.validator(id)
	if err != nil {
		return err
	}
	block, err := in.Block(name)
	if err != nil {
		return err
	}
	estimate, err := v.View().Estimate()
	if err != nil {
		return err
	}
	if !isHead(estimate, block) {
		return fmt.Errorf("validator %d has head %v, expected %s: %w", id, estimate, name, ErrAssertion)
	}
	return nil
}

// isHead checks whether a view estimate selects block. Blockchain estimates
// point at the head block itself; other protocols vote for the value the
// block carries.
func isHead(estimate casper.Estimate, block *casper.Message) bool {
	switch e := estimate.(type) {
	case nil:
		return false
	case blockchain.Estimate:
		return e.Block.Equal(block)
	default:
		return estimate.String() == block.Estimate().String()
	}
}

func (in *Interpreter) RoundRobin(id casper.ValidatorID, name string) error {
	if _, err := in.validator(id); err != nil {
		return err
	}
	if _, found := in.blocks[name]; found {
		return fmt.Errorf("%s: %w", name, ErrBlockExists)
	}
	ids := in.validators.IDs()
	start := slices.Index(ids, id)
	ids = append(ids[start:], ids[:start]...)
	for i, maker := range ids {
		blockName := name
		if i < len(ids)-1 {
			blockName = in.generateName()
		}
		if err := in.MakeBlock(maker, blockName); err != nil {
			return err
		}
		receiver := ids[(i+1)%len(ids)]
		if receiver == maker {
			continue
		}
		if err := in.SendBlock(receiver, blockName); err != nil {
			return err
		}
	}
	return nil
}

// generateName returns a block name that scripts cannot spell, since the
// grammar admits only alphanumeric names.
func (in *Interpreter) generateName() string {
	in.generated++
	return fmt.Sprintf("_rr%d", in.generated)
}

func (in *Interpreter) Report() error {
	global := in.network.GlobalView()
	estimate, err := global.Estimate()
	if err != nil {
		return err
	}
	report := Snapshot{Estimate: estimate, Messages: global.Len()}
	for _, candidate := range in.reportCandidates(global, estimate) {
		result, err := in.oracle.CheckEstimateSafety(candidate, global, in.validators)
		if err != nil {
			return err
		}
		if !result.IsSafe() {
			continue
		}
		report.Safe = append(report.Safe, SafeBlock{
			Name:           in.names[candidate.ID()],
			Block:          candidate,
			FaultTolerance: result.FaultTolerance,
			CliqueSize:     result.CliqueSize,
		})
	}
	in.reports = append(in.reports, report)
	log.Infow("report", "estimate", estimate, "messages", report.Messages, "safe", len(report.Safe))
	for _, safe := range report.Safe {
		log.Infow("safe block", "name", safe.Name, "block", safe.Block, "faultTolerance", safe.FaultTolerance, "cliqueSize", safe.CliqueSize)
	}
	return nil
}

// reportCandidates lists the messages a report checks for safety: the chain
// from the head down to genesis for blockchains, and the latest message of
// every honest validator otherwise.
func (in *Interpreter) reportCandidates(global *casper.View, estimate casper.Estimate) []*casper.Message {
	if e, ok := estimate.(blockchain.Estimate); ok {
		return blockchain.BestChain(e.Block)
	}
	latest := global.LatestHonestMessages()
	candidates := make([]*casper.Message, 0, len(latest))
	for _, id := range latest.Senders() {
		candidates = append(candidates, latest[id])
	}
	return candidates
}
