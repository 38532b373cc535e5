// Command storefront is an interactive terminal storefront. It talks to the API named by
// API_BASE_URL and keeps the signed-in session in the configured token store between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-storefront/app"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg, os.Stderr); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Err(err).Msg("closing storefront")
		}
	}()

	displayAppname(cfg.GetAppName())
	if err := a.Start(ctx); err != nil {
		fmt.Println(colour(Yellow, "Your previous session could not be restored. Please sign in again."))
	}

	done := make(chan error, 1)
	go func() {
		done <- newREPL(a, os.Stdin, os.Stdout).Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-waitForStopSignal():
		fmt.Println()
		return nil
	}
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
