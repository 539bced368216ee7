package blockchain_test

import (
	"testing"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/emulator"
	"github.com/filecoin-project/go-casper/protocol/blockchain"
	"github.com/filecoin-project/go-casper/protocol/integer"
	"github.com/filecoin-project/go-casper/scenario"
	"github.com/stretchr/testify/require"
)

func newBlock(t *testing.T, parent *casper.Message, sender casper.ValidatorID, seq uint64, justified ...*casper.Message) *casper.Message {
	t.Helper()
	justification, err := casper.NewJustification(justified...)
	require.NoError(t, err)
	block, err := casper.NewMessage(blockchain.Protocol{}, blockchain.Estimate{Block: parent}, justification, sender, seq)
	require.NoError(t, err)
	return block
}

func TestBlock_EqualityOfCopies(t *testing.T) {
	t.Run("genesis", func(t *testing.T) {
		genesis := newBlock(t, nil, 0, 0)
		shallow := *genesis
		deep := genesis.Clone()
		require.True(t, genesis.Equal(&shallow))
		require.True(t, genesis.Equal(deep))
		require.True(t, shallow.Equal(deep))
	})
	t.Run("non-genesis", func(t *testing.T) {
		subject, err := scenario.NewInterpreter(blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11})
		require.NoError(t, err)
		require.NoError(t, subject.Run("B0-A S1-A B1-B S0-B B0-C S1-C B1-D S0-D H0-D"))
		for _, name := range []string{"A", "B", "C", "D"} {
			block, err := subject.Block(name)
			require.NoError(t, err)
			shallow := *block
			deep := block.Clone()
			require.True(t, block.Equal(&shallow))
			require.True(t, block.Equal(deep))
			require.True(t, shallow.Equal(deep))
			require.True(t, blockchain.Parent(block).Equal(blockchain.Parent(deep)))
		}
	})
}

func TestBlock_GenesisOfDifferentValidatorsDiffer(t *testing.T) {
	one, other := newBlock(t, nil, 0, 0), newBlock(t, nil, 1, 0)
	require.False(t, one.Equal(other))
	require.False(t, blockchain.IsInBlockchain(one, other))
	require.False(t, blockchain.IsInBlockchain(other, one))
	require.True(t, blockchain.Protocol{}.Conflicts(one, other))
}

func TestIsInBlockchain(t *testing.T) {
	genesis := newBlock(t, nil, 0, 0)
	child := newBlock(t, genesis, 1, 0, genesis)
	grandchild := newBlock(t, child, 0, 1, genesis, child)
	sibling := newBlock(t, genesis, 0, 1, genesis)

	require.True(t, blockchain.IsInBlockchain(genesis, genesis))
	require.True(t, blockchain.IsInBlockchain(genesis, grandchild))
	require.True(t, blockchain.IsInBlockchain(child, grandchild))
	require.False(t, blockchain.IsInBlockchain(grandchild, child))
	require.False(t, blockchain.IsInBlockchain(sibling, grandchild))
	require.False(t, blockchain.IsInBlockchain(nil, grandchild))

	require.False(t, blockchain.Protocol{}.Conflicts(genesis, grandchild))
	require.False(t, blockchain.Protocol{}.Conflicts(grandchild, genesis))
	require.True(t, blockchain.Protocol{}.Conflicts(sibling, child))

	require.Equal(t, uint64(1), genesis.Height())
	require.Equal(t, uint64(2), child.Height())
	require.Equal(t, uint64(3), grandchild.Height())
	require.Equal(t, uint64(2), sibling.Height())

	chain := blockchain.BestChain(grandchild)
	require.Len(t, chain, 3)
	require.True(t, grandchild.Equal(chain[0]))
	require.True(t, child.Equal(chain[1]))
	require.True(t, genesis.Equal(chain[2]))
	require.Empty(t, blockchain.BestChain(nil))
}

func TestBlock_HeightIgnoresJustification(t *testing.T) {
	genesis := newBlock(t, nil, 0, 0)
	tall := genesis
	for seq := uint64(1); seq < 5; seq++ {
		tall = newBlock(t, tall, 0, seq, tall)
	}
	require.Equal(t, uint64(5), tall.Height())

	// A block citing the tall chain but extending genesis sits at height 2.
	short := newBlock(t, genesis, 1, 0, tall)
	require.Equal(t, uint64(2), short.Height())
}

func TestProtocol_Estimate(t *testing.T) {
	validators, err := casper.NewValidatorSet(blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11, 2: 12})
	require.NoError(t, err)

	genesis := newBlock(t, nil, 0, 0)
	left := newBlock(t, genesis, 0, 1, genesis)
	right := newBlock(t, genesis, 1, 0, genesis)
	rightChild := newBlock(t, right, 1, 1, genesis, right)

	t.Run("heaviest subtree wins", func(t *testing.T) {
		got, err := blockchain.Protocol{}.Estimate(casper.LatestMessages{0: left, 1: rightChild}, validators)
		require.NoError(t, err)
		require.True(t, rightChild.Equal(got.(blockchain.Estimate).Block))
	})
	t.Run("subtree weight beats single heavier child", func(t *testing.T) {
		leftOfRight := newBlock(t, right, 2, 0, right)
		latest := casper.LatestMessages{0: left, 1: rightChild, 2: leftOfRight}
		got, err := blockchain.Protocol{}.Estimate(latest, validators)
		require.NoError(t, err)
		// right carries 11+12 against left's 10; within right, 12 beats 11.
		require.True(t, leftOfRight.Equal(got.(blockchain.Estimate).Block))
	})
	t.Run("ties break by smallest identifier", func(t *testing.T) {
		equal, err := casper.NewValidatorSet(blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: 10})
		require.NoError(t, err)
		got, err := blockchain.Protocol{}.Estimate(casper.LatestMessages{0: left, 1: right}, equal)
		require.NoError(t, err)
		want := left
		if casper.CompareByID(right, left) < 0 {
			want = right
		}
		require.True(t, want.Equal(got.(blockchain.Estimate).Block))
	})
}

func TestProtocol_ValidateEstimate(t *testing.T) {
	require.NoError(t, blockchain.Protocol{}.ValidateEstimate(blockchain.Estimate{}))
	require.ErrorIs(t, blockchain.Protocol{}.ValidateEstimate(integer.Estimate(1)), casper.ErrInvalidEstimate)

	number, err := casper.NewMessage(integer.Protocol{}, integer.Estimate(1), casper.Justification{}, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, blockchain.Protocol{}.ValidateEstimate(blockchain.Estimate{Block: number}), casper.ErrInvalidEstimate)
}

func TestView_AddsParentOfBlock(t *testing.T) {
	validators, err := casper.NewValidatorSet(blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11})
	require.NoError(t, err)
	genesis := newBlock(t, nil, 0, 0)
	// The child extends genesis without citing it.
	child := newBlock(t, genesis, 1, 0)

	view, err := casper.NewView(validators, []*casper.Message{child})
	require.NoError(t, err)
	require.True(t, view.Has(genesis))
	head, err := blockchain.Head(view)
	require.NoError(t, err)
	require.True(t, child.Equal(head))
}

func TestFinalityIsMonotonic(t *testing.T) {
	subject, err := scenario.NewInterpreter(blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 10, 1: 11, 2: 12})
	require.NoError(t, err)
	validator, err := subject.Network().Validators().Get(0)
	require.NoError(t, err)

	var finalized []*casper.Message
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, subject.Run("RR0-"+name))
		m, err := validator.UpdateSafeEstimates()
		require.NoError(t, err)
		if m != nil {
			finalized = append(finalized, m)
		}
	}
	require.NotEmpty(t, finalized)
	for i := 1; i < len(finalized); i++ {
		require.True(t, blockchain.IsInBlockchain(finalized[i-1], finalized[i]))
	}
}

func TestFinalityFollowsHead(t *testing.T) {
	driver := emulator.NewDriver(t, blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 11, 1: 10})
	driver.RequireRun("B0-A S1-A B1-B B1-C B1-D")
	driver.RequireHead(1, "D")

	finalized := driver.RequireFinalized(1)
	require.True(t, driver.Block("D").Equal(finalized), "finalized %v", finalized)
	_, faultTolerance := driver.Validator(1).View().LastFinalized()
	require.Equal(t, casper.Weight(21), faultTolerance)

	// Finality holds on a later update with nothing new.
	require.True(t, driver.Block("D").Equal(driver.RequireFinalized(1)))

	driver.RequireRun("S0-D")
	require.True(t, driver.Block("D").Equal(driver.RequireFinalized(0)))
}

func TestFinalityAdvancesAlongChain(t *testing.T) {
	driver := emulator.NewDriver(t, blockchain.Protocol{}, map[casper.ValidatorID]casper.Weight{0: 11, 1: 10})
	driver.RequireRun("B0-A S1-A B1-B S0-B")
	require.True(t, driver.Block("B").Equal(driver.RequireFinalized(0)))

	driver.RequireRun("B0-C B0-D")
	finalized := driver.RequireFinalized(0)
	require.True(t, driver.Block("D").Equal(finalized), "finalized %v", finalized)
	require.True(t, blockchain.IsInBlockchain(driver.Block("B"), finalized))
}
