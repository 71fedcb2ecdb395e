// Command alps registers devices, subscriptions and publications with the
// match service and watches for matches.
//
// Usage:
//
//	alps <command> [flags]
//
// Examples:
//
//	# Create a subscription for the main device
//	alps sub create --topic ticket --selector "price < 30" --range 500 --duration 3600
//
//	# Watch matches over the push stream and serve metrics
//	alps watch --channel websocket --metrics-addr :9090
//
//	# Inspect a protocol log
//	alps log view --category match alps.mlog
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matchmore/alps-go/cmd/alps/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
