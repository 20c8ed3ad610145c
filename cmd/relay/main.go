// Command relay runs a chat relay server in front of a hosted LLM and a
// terminal client for it.
//
// Usage:
//
//	OPENAI_API_KEY=sk-... relay serve [flags]
//	relay chat [--session ID | --new] [flags]
//	relay sessions list|new|rm
//
// Settings are read from defaults, then the YAML file named by --config,
// then the environment (RELAY_ADDR, RELAY_DB, PORT, OPENAI_API_KEY,
// GEMINI_API_KEY, ANTHROPIC_API_KEY), then flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(env{getenv: os.Getenv, stdout: os.Stdout, stderr: os.Stderr})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		stop()
		os.Exit(1)
	}
}
