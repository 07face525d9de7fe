package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/timmy/facecheck/internal/app"
	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/logger"
)

type commandContext struct {
	configFlag  *string
	jsonFlag    *bool
	verboseFlag *bool

	// newApp builds the application; tests replace it.
	newApp func(ctx context.Context, configPath string, verbose bool) (*app.App, error)

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(configFlag *string, jsonFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		jsonFlag:    jsonFlag,
		verboseFlag: verboseFlag,
		newApp:      loadApp,
	}
}

// loadApp reads configuration and wires the application. CLI logs go to
// stderr so tables and JSON on stdout stay clean.
func loadApp(ctx context.Context, configPath string, verbose bool) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(&logger.Config{
		Level:       level,
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "facecheck-cli",
	})
	logger.SetDefaultLogger(log)
	return app.New(ctx, cfg, log)
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.app, c.appErr = c.newApp(ctx, path, c.verboseFlag != nil && *c.verboseFlag)
	})
	return c.app, c.appErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
	}
}
