package emulator

import (
	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/protocol/blockchain"
)

func (d *Driver) RequireRun(script string) {
	d.require.NoError(d.Run(script))
}

func (d *Driver) RequireErrOnRun(script string, err error, contains string) {
	gotErr := d.Run(script)
	d.require.Error(gotErr)
	d.require.ErrorIs(gotErr, err)
	if contains != "" {
		d.require.ErrorContains(gotErr, contains)
	}
}

// RequireHeights asserts the height of each named block.
func (d *Driver) RequireHeights(want map[string]uint64) {
	for name, height := range want {
		d.require.Equal(height, d.Block(name).Height(), "height of block %s", name)
	}
}

// RequireChain asserts that each named block directly extends the previous
// one.
func (d *Driver) RequireChain(names ...string) {
	blocks := d.Blocks(names...)
	for i := 1; i < len(blocks); i++ {
		prev, block := blocks[i-1], blocks[i]
		d.require.True(prev.Equal(blockchain.Parent(block)), "block %s does not extend %s", names[i], names[i-1])
		d.require.True(blockchain.IsInBlockchain(prev, block))
		d.require.False(blockchain.IsInBlockchain(block, prev))
		d.require.Equal(prev.Height()+1, block.Height())
	}
}

// RequireDistinct asserts that the named blocks are pairwise different, and
// each equal to its own copy.
func (d *Driver) RequireDistinct(names ...string) {
	blocks := d.Blocks(names...)
	for i, one := range blocks {
		d.require.True(one.Equal(one.Clone()))
		for j, other := range blocks {
			d.require.Equal(i == j, one.Equal(other), "blocks %s and %s", names[i], names[j])
		}
	}
}

// RequireIncreasingHeights asserts that the named blocks have strictly
// increasing heights.
func (d *Driver) RequireIncreasingHeights(names ...string) {
	var prev uint64
	for i, block := range d.Blocks(names...) {
		d.require.Greater(block.Height(), prev, "height of block %s", names[i])
		prev = block.Height()
	}
}

// RequireHead asserts that the fork-choice of the given validator is the named
// block.
func (d *Driver) RequireHead(id casper.ValidatorID, name string) {
	head, err := blockchain.Head(d.Validator(id).View())
	d.require.NoError(err)
	d.require.True(d.Block(name).Equal(head), "head of %d is %v, not %s", id, head, name)
}

// RequireFinalized updates the safe estimates of the given validator and
// asserts that it has finalized a message, which it returns.
func (d *Driver) RequireFinalized(id casper.ValidatorID) *casper.Message {
	finalized, err := d.Validator(id).UpdateSafeEstimates()
	d.require.NoError(err)
	d.require.NotNil(finalized, "validator %d finalized nothing", id)
	return finalized
}
