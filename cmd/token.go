package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NabidKabir/kura-final-project/config"
	"github.com/NabidKabir/kura-final-project/internal/runtime"
)

func tokenCMD() *cobra.Command {
	var cfgPath string
	var subject string
	var ttl time.Duration
	var scopes []string
	var token = &cobra.Command{
		Use:   "token",
		Short: "Mint a service JWT, optionally with scopes (e.g. ops)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			secret, err := runtime.LoadJWTSecret(cfg)
			if err != nil {
				return err
			}
			signed, err := runtime.SignJWT(subject, secret, ttl, scopes...)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}
	token.Flags().StringVar(&subject, "subject", "ops@local", "token subject")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	token.Flags().StringSliceVar(&scopes, "scopes", nil, "scopes to embed")
	token.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return token
}
