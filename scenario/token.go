package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/filecoin-project/go-casper/casper"
	"go.uber.org/multierr"
)

var (
	// ErrBadToken signals a token that does not follow the scenario grammar.
	ErrBadToken = errors.New("bad token")
	// ErrUnknownBlock signals a reference to a block name never produced.
	ErrUnknownBlock = errors.New("block does not exist")
	// ErrBlockExists signals an attempt to reuse a block name.
	ErrBlockExists = errors.New("block already exists")
	// ErrAssertion signals a scenario check that did not hold.
	ErrAssertion = errors.New("assertion failed")
)

var tokenPattern = regexp.MustCompile(`^([A-Za-z]*)([0-9]*)(-*)([A-Za-z0-9]*)$`)

// Command is an instruction of the scenario language.
type Command int

const (
	// MakeBlock has a validator produce a block: B<validator>-<name>.
	MakeBlock Command = iota
	// SendBlock delivers a named block to a validator: S<validator>-<name>.
	SendBlock
	// CheckSafety asserts that a validator has finalized nothing, or a block
	// that does not conflict with the named one: C<validator>-<name>.
	CheckSafety
	// CheckNoSafety asserts that a validator has finalized nothing, or a block
	// conflicting with the named one: U<validator>-<name>.
	CheckNoSafety
	// CheckHead asserts that the fork-choice of a validator is the named
	// block: H<validator>-<name>.
	CheckHead
	// RoundRobin has every validator, starting from the given one, produce a
	// block and send it to the next: RR<validator>-<name>. The last block
	// produced gets the name.
	RoundRobin
	// Report records the fork-choice and safe blocks of the global view: R.
	Report
)

var commandLetters = []string{
	MakeBlock:     "B",
	SendBlock:     "S",
	CheckSafety:   "C",
	CheckNoSafety: "U",
	CheckHead:     "H",
	RoundRobin:    "RR",
	Report:        "R",
}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandLetters) {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandLetters[c]
}

func parseCommand(letters string) (Command, bool) {
	for c, l := range commandLetters {
		if l == letters {
			return Command(c), true
		}
	}
	return 0, false
}

// Token is a single parsed instruction.
type Token struct {
	Command   Command
	Validator casper.ValidatorID
	Name      string
}

func (t Token) String() string {
	if t.Command == Report {
		return t.Command.String()
	}
	return fmt.Sprintf("%s%d-%s", t.Command, t.Validator, t.Name)
}

// ParseToken parses one instruction. Every command but Report takes a
// validator and a block name; Report takes neither.
func ParseToken(s string) (Token, error) {
	groups := tokenPattern.FindStringSubmatch(s)
	if groups == nil {
		return Token{}, fmt.Errorf("%q: %w", s, ErrBadToken)
	}
	letters, validator, dash, name := groups[1], groups[2], groups[3], groups[4]
	command, found := parseCommand(letters)
	if !found {
		return Token{}, fmt.Errorf("%q: unknown command %q: %w", s, letters, ErrBadToken)
	}
	if command == Report {
		if validator != "" || dash != "" || name != "" {
			return Token{}, fmt.Errorf("%q: report takes no arguments: %w", s, ErrBadToken)
		}
		return Token{Command: Report}, nil
	}
	if validator == "" || dash != "-" || name == "" {
		return Token{}, fmt.Errorf("%q: expected %s<validator>-<name>: %w", s, command, ErrBadToken)
	}
	id, err := strconv.ParseUint(validator, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%q: validator %q: %v: %w", s, validator, err, ErrBadToken)
	}
	return Token{Command: command, Validator: casper.ValidatorID(id), Name: name}, nil
}

// Parse splits a script on whitespace and parses every token. All malformed
// tokens are reported together.
func Parse(script string) ([]Token, error) {
	fields := strings.Fields(script)
	tokens := make([]Token, 0, len(fields))
	var errs error
	for _, field := range fields {
		token, err := ParseToken(field)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		tokens = append(tokens, token)
	}
	if errs != nil {
		return nil, errs
	}
	return tokens, nil
}
