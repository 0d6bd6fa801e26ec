package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"solana-activity-service/client"
	"solana-activity-service/service/activity"
)

const defaultServerURL = "http://localhost:8080"

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"feed"},
		Usage:     "Fetch recent activity for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   defaultServerURL,
				Usage:   "HTTP server URL",
				EnvVars: []string{"ACTIVITY_SERVER_URL"},
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of activities to fetch (server default if unset)",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true against each activity (can be specified multiple times, all must match)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   60 * time.Second,
				Usage:   "Request timeout",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)
			serverURL := c.String("server")
			limit := c.Int("limit")
			jqFilters := c.StringSlice("must-jq")
			timeout := c.Duration("timeout")
			jsonOutput := c.Bool("json")

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
			}))

			// Compile jq filters
			compiledJQFilters := make([]*gojq.Code, len(jqFilters))
			for i, filter := range jqFilters {
				query, err := gojq.Parse(filter)
				if err != nil {
					return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
				}
				compiledJQFilters[i], err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			cl := client.NewClient(serverURL, nil, logger)
			feed, err := cl.GetActivity(ctx, address, client.GetActivityOptions{Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to fetch activity: %w", err)
			}

			entries := feed.Data
			if len(compiledJQFilters) > 0 {
				entries, err = filterActivities(entries, compiledJQFilters, logger)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal activities: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(entries) == 0 {
				fmt.Println(feed.Message)
				return nil
			}

			fmt.Printf("Activity for %s (%d entries):\n\n", address, len(entries))
			for _, act := range entries {
				printActivity(&act)
			}
			return nil
		},
	}
}

// filterActivities keeps only entries for which every compiled jq filter
// evaluates to a truthy value. Entries are matched against their JSON form
// so filters see the same field names the API emits.
func filterActivities(entries []activity.Activity, filters []*gojq.Code, logger *slog.Logger) ([]activity.Activity, error) {
	kept := make([]activity.Activity, 0, len(entries))
	for _, act := range entries {
		// Round-trip through JSON so jq sees plain maps and numbers.
		raw, err := json.Marshal(act)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal activity %s: %w", act.TransactionHash, err)
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity %s: %w", act.TransactionHash, err)
		}

		matched := true
		for _, code := range filters {
			iter := code.Run(doc)
			v, ok := iter.Next()
			if !ok {
				matched = false
				break
			}
			if err, isErr := v.(error); isErr {
				logger.Debug("jq filter error", "error", err)
				matched = false
				break
			}
			if !isTruthy(v) {
				matched = false
				break
			}
		}
		if matched {
			kept = append(kept, act)
		}
	}
	return kept, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func printActivity(act *activity.Activity) {
	fmt.Printf("  %s  %s\n", act.Timestamp, act.Type)
	fmt.Printf("    Hash:    %s\n", act.TransactionHash)
	fmt.Printf("    Amount:  %s", act.Metadata.Amount)
	if act.Token.Symbol != "" {
		fmt.Printf(" (%s)", act.Token.Symbol)
	}
	fmt.Println()
	fmt.Printf("    Fee:     %d lamports\n", act.Fee)
	fmt.Printf("    Explorer: %s\n\n", act.ExplorerURL)
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   defaultServerURL,
				Usage:   "HTTP server URL",
				EnvVars: []string{"ACTIVITY_SERVER_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server")
			if serverURL == "" {
				return fmt.Errorf("server is required (set ACTIVITY_SERVER_URL env var or use --server)")
			}

			httpClient := &http.Client{
				Timeout: c.Duration("timeout"),
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
			}))

			cl := client.NewClient(serverURL, httpClient, logger)
			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("server is unhealthy: %w", err)
			}

			fmt.Printf("✓ Server is healthy\n")
			fmt.Printf("  URL: %s\n", serverURL)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("activity CLI\n")
			fmt.Printf("  Version: %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", date)
			return nil
		},
	}
}
