package main

import (
	"fmt"
	"time"

	"github.com/filecoin-project/go-casper/casper"
	"github.com/filecoin-project/go-casper/sim"
	"github.com/filecoin-project/go-casper/sim/latency"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var simulateCmd = cli.Command{
	Name:  "simulate",
	Usage: "runs randomised simulations",
	Flags: []cli.Flag{
		protocolFlag,
		weightsFlag,
		mutualVisibilityFlag,
		&cli.IntFlag{
			Name:  "iterations",
			Value: 1,
			Usage: "number of simulations to run",
		},
		&cli.IntFlag{
			Name:  "rounds",
			Value: 20,
			Usage: "number of rounds per simulation",
		},
		&cli.StringFlag{
			Name:  "mode",
			Value: sim.RoundRobin.String(),
			Usage: "message mode, one of rrob, rand or full",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: time.Now().UnixMilli(),
			Usage: "random seed; successive iterations increment it",
		},
		&cli.StringFlag{
			Name:  "latency",
			Value: "lognormal",
			Usage: "network latency model, one of lognormal or zipf",
		},
		&cli.DurationFlag{
			Name:  "latency-mean",
			Usage: "scale of the network latency: median for lognormal, maximum for zipf; zero for none",
		},
		&cli.Int64SliceFlag{
			Name:  "partition",
			Usage: "validators cut off from the rest of the network until the partition heals",
		},
		&cli.IntFlag{
			Name:  "partition-rounds",
			Value: 5,
			Usage: "number of rounds after which the partition heals",
		},
		&cli.BoolFlag{
			Name:  "random-estimates",
			Usage: "draw initial estimates at random",
		},
		&cli.IntFlag{
			Name:  "parallelism",
			Value: 4,
			Usage: "maximum number of simulations to run at once",
		},
	},
	Action: func(c *cli.Context) error {
		protocol, err := protocolByName(c.String(protocolFlag.Name))
		if err != nil {
			return err
		}
		mode, err := sim.ParseMode(c.String("mode"))
		if err != nil {
			return err
		}
		iterations := c.Int("iterations")
		results := make([]string, iterations)

		var eg errgroup.Group
		eg.SetLimit(max(c.Int("parallelism"), 1))
		for i := 0; i < iterations; i++ {
			i := i
			seed := c.Int64("seed") + int64(i)
			eg.Go(func() error {
				if err := c.Context.Err(); err != nil {
					return err
				}
				opts := []sim.Option{
					sim.WithMode(mode),
					sim.WithSeed(seed),
					sim.WithCasperOptions(casperOptionsFrom(c)...),
				}
				lm, err := latencyModelFrom(c, seed)
				if err != nil {
					return err
				}
				opts = append(opts, sim.WithLatencyModel(lm))
				if c.Bool("random-estimates") {
					opts = append(opts, sim.WithRandomInitialEstimates())
				}
				sm, err := sim.NewSimulation(protocol, weightsFrom(c), opts...)
				if err != nil {
					return xerrors.Errorf("iteration %d: %w", i, err)
				}
				if err := sm.Run(c.Int("rounds")); err != nil {
					log.Errorw("simulation failed", "iteration", i, "seed", seed, "err", err)
					results[i] = fmt.Sprintf("iteration %d (seed %d) failed: %v\n%s", i, seed, err, sm.Describe())
					return nil
				}
				events := sm.FinalityLog().Events()
				results[i] = fmt.Sprintf("iteration %d (seed %d): %d finalizations\n%s", i, seed, len(events), sm.Describe())
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		for _, result := range results {
			fmt.Fprint(c.App.Writer, result)
		}
		return nil
	},
}

func latencyModelFrom(c *cli.Context, seed int64) (latency.Model, error) {
	model := latency.None
	if scale := c.Duration("latency-mean"); scale > 0 {
		var err error
		switch name := c.String("latency"); name {
		case "lognormal":
			model, err = latency.NewLogNormal(seed, scale)
		case "zipf":
			model, err = latency.NewZipf(seed, 1.5, 1, scale)
		default:
			err = fmt.Errorf("unknown latency model: %s", name)
		}
		if err != nil {
			return nil, err
		}
	}
	if partitioned := c.Int64Slice("partition"); len(partitioned) > 0 {
		side := make([]casper.ValidatorID, 0, len(partitioned))
		for _, id := range partitioned {
			side = append(side, casper.ValidatorID(id))
		}
		// Simulations start at the zero time and advance a second per round.
		healAt := time.Time{}.Add(time.Duration(c.Int("partition-rounds")) * time.Second)
		model = latency.NewPartition(model, healAt, side...)
	}
	return model, nil
}
