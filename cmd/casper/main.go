package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/protocol/blockchain"
	"github.com/filecoin-project/go-casper/protocol/integer"
	"github.com/filecoin-project/go-casper/protocol/order"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("casper/cmd")

var (
	protocolFlag = &cli.StringFlag{
		Name:  "protocol",
		Value: blockchain.Name,
		Usage: "protocol variant, one of blockchain, integer or order",
	}
	weightsFlag = &cli.Int64SliceFlag{
		Name:  "weights",
		Value: cli.NewInt64Slice(10, 11, 12),
		Usage: "weight of each validator; validators are numbered from 0",
	}
	mutualVisibilityFlag = &cli.BoolFlag{
		Name:  "mutual-visibility",
		Usage: "require clique members to have seen each other agree",
	}
)

func main() {
	app := &cli.App{
		Name:  "casper",
		Usage: "run CBC-Casper scenarios and simulations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level of the casper loggers",
			},
		},
		Before: func(c *cli.Context) error {
			return logging.SetLogLevelRegex("casper.*", c.String("log-level"))
		},
		Commands: []*cli.Command{
			&runCmd,
			&simulateCmd,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %+v\n", err)
		os.Exit(1)
	}
}

func protocolByName(name string) (casper.Protocol, error) {
	switch name {
	case blockchain.Name:
		return blockchain.Protocol{}, nil
	case integer.Name:
		return integer.Protocol{}, nil
	case order.Name:
		return order.Protocol{}, nil
	default:
		return nil, fmt.Errorf("unknown protocol: %q", name)
	}
}

func weightsFrom(c *cli.Context) map[casper.ValidatorID]casper.Weight {
	values := c.Int64Slice(weightsFlag.Name)
	weights := make(map[casper.ValidatorID]casper.Weight, len(values))
	for i, w := range values {
		weights[casper.ValidatorID(i)] = casper.Weight(w)
	}
	return weights
}

func casperOptionsFrom(c *cli.Context) []casper.Option {
	return []casper.Option{
		casper.WithMutualVisibility(c.Bool(mutualVisibilityFlag.Name)),
		casper.WithTracer(casper.NewLogTracer("casper/trace")),
	}
}
