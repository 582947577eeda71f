package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to the configured retrieval backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initService(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		checks := []struct {
			name  string
			probe func(context.Context) error
		}{
			{"weaviate (tiers 1-2)", func(ctx context.Context) error {
				if env.weaviateClient == nil {
					return errNotConfigured
				}
				ready, err := env.weaviateClient.Misc().ReadyChecker().Do(ctx)
				if err != nil {
					return err
				}
				if !ready {
					return fmt.Errorf("not ready")
				}
				return nil
			}},
			{"neo4j (tier 3)", func(ctx context.Context) error {
				if env.neo4jDriver == nil {
					return errNotConfigured
				}
				return env.neo4jDriver.VerifyConnectivity(ctx)
			}},
			{"postgres (tier 4)", func(ctx context.Context) error {
				if env.pgPool == nil {
					return errNotConfigured
				}
				return env.pgPool.Ping(ctx)
			}},
			{"audit store", func(ctx context.Context) error {
				if env.Audit == nil {
					return errNotConfigured
				}
				_, err := env.Audit.Recent(ctx, 1)
				return err
			}},
		}

		failures := 0
		for _, c := range checks {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.probe(probeCtx)
			cancel()

			switch {
			case err == errNotConfigured:
				fmt.Printf("%-22s not configured\n", c.name)
			case err != nil:
				failures++
				fmt.Printf("%-22s FAIL: %v\n", c.name, err)
			default:
				fmt.Printf("%-22s ok\n", c.name)
			}
		}

		if failures > 0 {
			return fmt.Errorf("%d backend(s) unreachable", failures)
		}
		return nil
	},
}

var errNotConfigured = fmt.Errorf("not configured")

func init() {
	rootCmd.AddCommand(statusCmd)
}
