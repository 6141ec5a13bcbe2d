package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wecomrelay/pkg/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Config:", opts.getConfigPath())
			fmt.Fprintf(w, "Listen: %s\n", cfg.ListenAddr())
			fmt.Fprintf(w, "Webhook: %s\n", redactWebhookURL(cfg.WeCom.WebhookURL))
			fmt.Fprintf(w, "Timeout: %s\n", cfg.ForwardTimeout())
			fmt.Fprintf(w, "Mentions: %v\n", cfg.WeCom.MentionedList)
			fmt.Fprintf(w, "Distinguish upstream errors: %v\n", cfg.Relay.DistinguishUpstreamErrors)
			fmt.Fprintf(w, "Logging: %v\n", cfg.Logging.Enabled)
			if cfg.Logging.Enabled {
				fmt.Fprintf(w, "Log File: %s\n", cfg.LogFilePath())
			}

			errs := config.Validate(cfg)
			if len(errs) == 0 {
				fmt.Fprintln(w, "✓ Config OK")
				return nil
			}
			for _, e := range errs {
				fmt.Fprintf(w, "✗ %v\n", e)
			}
			return errInvalidConfig
		},
	})
	return configCmd
}
