package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type config struct {
	bind        string
	port        int
	externalURL string
	idleTimeout time.Duration
	verbose     bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.idleTimeout <= 0 {
		return errors.New("--idle-timeout must be positive")
	}
	return nil
}

func (c *config) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

// newCmd wires the flags through viper so every option is also settable via a
// SUBTERFUGE_* environment variable.
func newCmd(cfg *config, run func(*config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SUBTERFUGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "subterfuge",
		Short: "Hidden-role social-deduction game server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				if !f.Changed && v.IsSet(f.Name) {
					cmd.Flags().Set(f.Name, v.GetString(f.Name))
				}
			})
			return cfg.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.bind, "bind", "0.0.0.0", "address to bind to")
	cmd.Flags().IntVar(&cfg.port, "port", 8080, "port to listen on")
	cmd.Flags().StringVar(&cfg.externalURL, "external-url", "http://localhost:8080", "public base URL used in join QR codes")
	cmd.Flags().DurationVar(&cfg.idleTimeout, "idle-timeout", 30*time.Minute, "remove rooms idle for longer than this")
	cmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}
