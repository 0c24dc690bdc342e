package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/errors"
	"github.com/dsnplabs/graphsdk/pkg/simulator"
)

// simulateCommand creates the simulate command.
func (c *CLI) simulateCommand() *cobra.Command {
	var (
		users       int
		connections int
		seed        int64
		rounds      int
		rotate      bool
		dir         string
		resume      string
		envName     string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a chain simulation against the graph SDK",
		Long: `Run a chain simulation: bootstrap a population of users with
published keys and private graphs, churn their connections for a number
of rounds, and verify after every round that re-importing the stored
pages reproduces the expected social graph.

Runs are persisted between phases; an interrupted run can be resumed
with --resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := config.Parse(envName)
			if err != nil {
				return err
			}

			if dir == "" {
				if dir, err = runDir(); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "resolve run directory")
				}
			}
			store, err := simulator.NewFileStore(dir)
			if err != nil {
				return err
			}

			var run *simulator.Run
			if resume != "" {
				if run, err = store.Load(ctx, resume); err != nil {
					return err
				}
				if run == nil {
					return errors.New(errors.ErrCodeInvalidInput, "unknown run %s", resume)
				}
				c.Logger.Info("resuming run", "id", run.ID, "phase", run.Chain.Phase())
			} else {
				run = simulator.NewRun(env, simulator.Options{
					Users:       users,
					Connections: connections,
					Seed:        seed,
				})
				c.Logger.Info("starting run", "id", run.ID, "users", run.Options.Users)
			}

			sim := simulator.New(env, run.Chain, run.Options, c.Logger)
			prog := newProgress(c.Logger)

			if err := sim.Bootstrap(); err != nil {
				return err
			}
			if err := store.Save(ctx, run); err != nil {
				return err
			}

			if rotate {
				if err := sim.RotateKeys(); err != nil {
					return err
				}
				if err := store.Save(ctx, run); err != nil {
					return err
				}
			}

			graphs := []config.ConnectionType{config.FollowPrivate, config.FriendshipPrivate}
			for round := 0; round < rounds; round++ {
				for _, ct := range graphs {
					if err := sim.Churn(ct); err != nil {
						return err
					}
					if err := sim.Verify(ct); err != nil {
						return err
					}
				}
				if err := store.Save(ctx, run); err != nil {
					return err
				}
				c.Logger.Info("round complete", "round", round+1, "of", rounds)
			}

			for _, ct := range graphs {
				if err := sim.Verify(ct); err != nil {
					return err
				}
			}

			prog.done(fmt.Sprintf("run %s verified", run.ID))
			fmt.Fprintln(cmd.OutOrStdout(), run.ID)
			return nil
		},
	}

	cmd.Flags().IntVar(&users, "users", 10, "population size")
	cmd.Flags().IntVar(&connections, "connections", 4, "connections per bootstrapped graph")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for reproducible runs")
	cmd.Flags().IntVar(&rounds, "rounds", 1, "churn rounds after bootstrap")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "rotate every user's graph key after bootstrap")
	cmd.Flags().StringVar(&dir, "dir", "", "run directory (default ~/.config/graphsdk/runs)")
	cmd.Flags().StringVar(&resume, "resume", "", "resume a persisted run by id")
	cmd.Flags().StringVar(&envName, "env", "mainnet", "environment (mainnet or rococo)")

	return cmd
}
