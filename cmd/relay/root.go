package main

import (
	"io"

	"github.com/fwojciec/relay/config"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:3000/api"

// env is the process environment. It is read only in main and passed down so
// commands can be tested.
type env struct {
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	serverURL  string
}

func newRootCmd(e env) *cobra.Command {
	var f rootFlags
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Persistent chat relay for hosted LLMs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&f.serverURL, "server", "", "relay API base URL for client commands (default "+defaultServerURL+", env RELAY_SERVER)")

	cmd.AddCommand(
		newServeCmd(e, &f),
		newChatCmd(e, &f),
		newSessionsCmd(e, &f),
	)
	return cmd
}

// loadConfig resolves file and environment settings and the shared flags.
func (f *rootFlags) loadConfig(e env) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv(e.getenv)
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

// server returns the API base URL for client commands.
func (f *rootFlags) server(e env) string {
	if f.serverURL != "" {
		return f.serverURL
	}
	if v := e.getenv("RELAY_SERVER"); v != "" {
		return v
	}
	return defaultServerURL
}
