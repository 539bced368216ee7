package main

import (
	"fmt"
	"strings"

	"github.com/filecoin-project/go-casper/scenario"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
)

var runCmd = cli.Command{
	Name:      "run",
	Usage:     "runs a scenario script, e.g. \"B0-A S1-A B1-B S0-B H0-B R\"",
	ArgsUsage: "<script>",
	Flags: []cli.Flag{
		protocolFlag,
		weightsFlag,
		mutualVisibilityFlag,
	},
	Action: func(c *cli.Context) error {
		script := strings.Join(c.Args().Slice(), " ")
		if strings.TrimSpace(script) == "" {
			return xerrors.New("a scenario script is required")
		}
		protocol, err := protocolByName(c.String(protocolFlag.Name))
		if err != nil {
			return err
		}
		interpreter, err := scenario.NewInterpreter(protocol, weightsFrom(c), casperOptionsFrom(c)...)
		if err != nil {
			return xerrors.Errorf("creating interpreter: %w", err)
		}
		if err := interpreter.Run(script); err != nil {
			return xerrors.Errorf("running scenario: %w", err)
		}
		out := c.App.Writer
		for i, report := range interpreter.Reports() {
			fmt.Fprintf(out, "report %d: estimate %v over %d messages\n", i, report.Estimate, report.Messages)
			for _, safe := range report.Safe {
				name := safe.Name
				if name == "" {
					name = safe.Block.String()
				}
				fmt.Fprintf(out, "  safe %s: fault tolerance %d, clique of %d\n", name, safe.FaultTolerance, safe.CliqueSize)
			}
		}
		fmt.Fprintln(out, "scenario passed")
		return nil
	},
}
