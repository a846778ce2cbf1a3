package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NabidKabir/kura-final-project/config"
	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/agent/telemetry"
)

func queryCMD() *cobra.Command {
	var cfgPath string
	var location string
	var timeout time.Duration
	var query = &cobra.Command{
		Use:   "query [question]",
		Short: "Answer one disposal question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			logger := log.New(os.Stderr, "[KURA] ", log.LstdFlags)
			orch, err := core.NewOrchestrator(cfg, logger, tele)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			// A degraded run still yields a printable result with the
			// apology response, so the error is reported, not returned.
			res, err := orch.ProcessQuery(ctx, strings.Join(args, " "), location)
			if err != nil {
				logger.Printf("workflow degraded: %v", err)
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	query.Flags().StringVar(&location, "location", "", "location hint (zip, \"lat,lng\", or \"City, ST\")")
	query.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall processing timeout")
	query.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return query
}
