package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/internal/app"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// commandContext lazily builds what subcommands share
type commandContext struct {
	verbose *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger

	app *app.App
}

func newCommandContext(verbose *bool) *commandContext {
	return &commandContext{verbose: verbose}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *zap.Logger {
	c.loggerOnce.Do(func() {
		env := ""
		if c.config != nil {
			env = c.config.Server.Environment
		}
		c.logger = app.NewLogger(env, c.verbose != nil && *c.verbose)
	})
	return c.logger
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, c.ensureLogger())
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
