package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/readiness"
)

func newVerifyCmd() *cobra.Command {
	var attempts int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every configured service once and report health",
		Long: `verify checks every service in readiness.services, critical or not,
once by default (see --attempts), prints one line per service and exits 1
if any of them is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// verify is a one-shot check; readiness.max_attempts only
			// governs the pipeline's wait.
			rc := cfg.Readiness
			rc.MaxAttempts = attempts

			targets, err := readiness.TargetsFor(rc.Services)
			if err != nil {
				return err
			}

			out := console.New(cmd.OutOrStdout())
			out.Header("Service health")
			results := readiness.NewProber(rc).ProbeAll(cmd.Context(), targets)
			for _, r := range results {
				if r.Healthy {
					out.Success("%-14s healthy (%s)", r.Service, r.Elapsed.Round(time.Millisecond))
					continue
				}
				out.Failure("%-14s unhealthy after %d attempt(s): %s", r.Service, r.Attempts, r.LastError)
				out.Hint("%s", r.Target)
			}

			healthy := readiness.CountHealthy(results)
			out.Info("Healthy: %d/%d", healthy, len(results))
			if healthy != len(results) {
				return fmt.Errorf("%d of %d services unhealthy", len(results)-healthy, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 1, "attempts per service before it counts as unhealthy")
	return cmd
}
