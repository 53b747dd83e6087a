package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"staffplan/internal/cli"
)

const flushTimeout = 20 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	cli.SetupLogger(level)

	cfg, err := cli.LoadClientConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	sess, err := cli.OpenSession(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := cli.NewRootCmd(sess.App).ExecuteContext(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	return errors.Join(runErr, sess.Close(flushCtx))
}
