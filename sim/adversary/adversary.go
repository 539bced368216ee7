package adversary

import (
	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/sim"
)

var _ Host = (*sim.Network)(nil)

// Host is the endpoint with which an adversary controls the network.
type Host interface {
	Validators() *casper.ValidatorSet
	// Records a message the adversary crafted so that it may be sent.
	Inject(*casper.Message) error
	// Queues a message for delivery to a single validator.
	Send(*casper.Message, casper.ValidatorID) error
}
