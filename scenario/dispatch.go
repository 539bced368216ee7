package scenario

import (
	"fmt"

	"github.com/filecoin-project/go-casper/casper"
)

// Handler executes the commands of the scenario language.
type Handler interface {
	MakeBlock(validator casper.ValidatorID, name string) error
	SendBlock(validator casper.ValidatorID, name string) error
	CheckSafety(validator casper.ValidatorID, name string) error
	CheckNoSafety(validator casper.ValidatorID, name string) error
	CheckHead(validator casper.ValidatorID, name string) error
	RoundRobin(validator casper.ValidatorID, name string) error
	Report() error
}

// Dispatch calls the method of h that executes token.
func Dispatch(h Handler, token Token) error {
	switch token.Command {
	case MakeBlock:
		return h.MakeBlock(token.Validator, token.Name)
	case SendBlock:
		return h.SendBlock(token.Validator, token.Name)
	case CheckSafety:
		return h.CheckSafety(token.Validator, token.Name)
	case CheckNoSafety:
		return h.CheckNoSafety(token.Validator, token.Name)
	case CheckHead:
		return h.CheckHead(token.Validator, token.Name)
	case RoundRobin:
		return h.RoundRobin(token.Validator, token.Name)
	case Report:
		return h.Report()
	default:
		return fmt.Errorf("%v: %w", token.Command, ErrBadToken)
	}
}
