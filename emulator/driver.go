package emulator

import (
	"testing"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/scenario"
	"github.com/stretchr/testify/require"
)

// Driver drives a scripted scenario over a set of validators, and allows
// step-by-step control and assertions over the blocks it produces.
type Driver struct {
	require *require.Assertions
	subject *scenario.Interpreter
}

// NewDriver instantiates a new Driver with validators of the given weights
// running protocol. The options apply to every view and safety check.
func NewDriver(t *testing.T, protocol casper.Protocol, weights map[casper.ValidatorID]casper.Weight, o ...casper.Option) *Driver {
	subject, err := scenario.NewInterpreter(protocol, weights, o...)
	require.NoError(t, err)
	return &Driver{
		require: require.New(t),
		subject: subject,
	}
}

// Interpreter returns the interpreter the driver runs scripts with.
func (d *Driver) Interpreter() *scenario.Interpreter { return d.subject }

// Run runs a script. See scenario.Interpreter.Run.
func (d *Driver) Run(script string) error { return d.subject.Run(script) }

// Validator returns the validator with the given ID, failing the test if it
// does not exist.
func (d *Driver) Validator(id casper.ValidatorID) *casper.Validator {
	v, err := d.subject.Network().Validators().Get(id)
	d.require.NoError(err)
	return v
}

// Block returns the block produced under the given name, failing the test if
// there is none.
func (d *Driver) Block(name string) *casper.Message {
	block, err := d.subject.Block(name)
	d.require.NoError(err)
	return block
}

// Blocks returns the blocks produced under the given names, in order.
func (d *Driver) Blocks(names ...string) []*casper.Message {
	blocks := make([]*casper.Message, len(names))
	for i, name := range names {
		blocks[i] = d.Block(name)
	}
	return blocks
}
