// Command mockapi serves the in-memory storefront API for local development. It seeds a demo
// account (demo / demo123) so the storefront CLI can sign in straight away.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-storefront/apitest"
	"github.com/jrsteele09/go-storefront/internal/config"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	addrEnvVar  = "MOCKAPI_ADDR"
	defaultAddr = ":8080"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("mock API stopped with an error")
	}
	log.Info().Msg("mock API stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	api, err := apitest.New()
	if err != nil {
		return err
	}
	if _, err := api.AddUser(users.RegisterRequest{
		Username:  "demo",
		Email:     "demo@storefront.test",
		Password:  "demo123",
		FirstName: "Demo",
		LastName:  "User",
	}); err != nil {
		return err
	}

	displayAppname("mock api")
	server := &http.Server{Addr: config.GetEnv(addrEnvVar, defaultAddr), Handler: api}
	go listenAndServe(server)
	waitForStopSignal()
	return shutdown(server)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Str("root", apitest.APIRoot).Msg("mock API listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
