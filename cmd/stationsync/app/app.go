// Package app wires configuration, logging, and the command tree for the
// stationsync CLI.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/seisio/stationsync/pkg/logging"
)

// App is the CLI application with its configuration and logger.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger
}

// New creates an App, loading configuration and configuring the global
// logger.
func New(version, commit, date string) (*App, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logging.Configure(config.LogLevel, config.LogFormat)

	return &App{
		version: version,
		commit:  commit,
		date:    date,
		config:  config,
		logger:  logging.Default(),
	}, nil
}

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Execute runs the command tree with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(logging.WithLogger(ctx, a.logger))
}

// ExitOnError prints the error to stderr and exits non-zero.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
