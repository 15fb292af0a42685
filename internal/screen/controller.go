// Package screen holds the sandbox's single screen: two readiness flags,
// their status lines, and the initialize / evaluate-and-display actions
// that drive the SDK.
//
// Every method and every dispatched continuation runs on the UI context.
// SDK callbacks never touch State directly; they go through the Dispatcher.
package screen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"intercept-sandbox/internal/i18n"
	"intercept-sandbox/internal/sdk"
)

var (
	ErrInitialization = errors.New("initialization failed")
	ErrNoHostView     = errors.New("no root view to display on")
)

// SDK is the part of the survey SDK the screen drives.
type SDK interface {
	InitializeProject(ctx context.Context, brandID, projectID string) error
	Properties() *sdk.Properties
	EvaluateIntercept(ctx context.Context, interceptID string, cb func(sdk.TargetingResult))
	DisplayIntercept(ctx context.Context, interceptID string, host sdk.Host)
}

// HostLocator finds the foreground top-level view to render intercepts on.
type HostLocator interface {
	ForegroundHost() (sdk.Host, bool)
}

// Config identifies what the screen exercises.
type Config struct {
	BrandID       string
	ProjectID     string
	InterceptID   string
	PropertyKey   string
	PropertyValue string
}

type State struct {
	Initialized   bool
	Displayed     bool
	Evaluating    bool
	InitStatus    string
	DisplayStatus string
	Err           error // last ErrInitialization or ErrNoHostView, nil otherwise
}

type Controller struct {
	cfg   Config
	sdk   SDK
	hosts HostLocator
	ui    Dispatcher
	log   zerolog.Logger

	state State
	gen   uint64 // bumped by every action; stale evaluation callbacks are dropped
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }

func New(cfg Config, client SDK, hosts HostLocator, ui Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		cfg:   cfg,
		sdk:   client,
		hosts: hosts,
		ui:    ui,
		log:   log.Logger,
		state: State{
			InitStatus:    i18n.T("screen.init.idle", nil),
			DisplayStatus: i18n.T("screen.display.idle", nil),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a copy of the current session state.
func (c *Controller) State() State { return c.state }

func (c *Controller) Config() Config { return c.cfg }

// Initialize binds the SDK to the configured brand and project. It blocks
// for the duration of the SDK call and may be repeated at any time.
func (c *Controller) Initialize(ctx context.Context) {
	c.gen++
	if c.state.Evaluating {
		c.state.Evaluating = false
		c.state.DisplayStatus = i18n.T("screen.display.idle", nil)
	}

	err := c.sdk.InitializeProject(ctx, c.cfg.BrandID, c.cfg.ProjectID)
	if err != nil {
		c.state.Initialized = false
		c.state.Displayed = false
		c.state.InitStatus = i18n.T("screen.init.failed", map[string]any{"Error": err.Error()})
		c.state.DisplayStatus = i18n.T("screen.display.init_first", nil)
		c.state.Err = fmt.Errorf("%w: %w", ErrInitialization, err)
		c.log.Error().Err(err).Str("brand_id", c.cfg.BrandID).Str("project_id", c.cfg.ProjectID).
			Msg("project initialization failed")
		return
	}

	c.state.Initialized = true
	c.state.InitStatus = i18n.T("screen.init.passed", nil)
	c.state.Err = nil
	if !c.state.Displayed && !c.state.Evaluating {
		c.state.DisplayStatus = i18n.T("screen.display.idle", nil)
	}
	c.log.Info().Str("brand_id", c.cfg.BrandID).Str("project_id", c.cfg.ProjectID).
		Msg("project initialization passed")
}

// EvaluateAndDisplay sets the test property and starts an asynchronous
// evaluation of the configured intercept. It reports false, and does
// nothing, when the SDK has not been initialized.
func (c *Controller) EvaluateAndDisplay(ctx context.Context) bool {
	if !c.state.Initialized {
		return false
	}
	c.sdk.Properties().SetString(c.cfg.PropertyKey, c.cfg.PropertyValue)

	c.gen++
	gen := c.gen
	c.state.Displayed = false
	c.state.Evaluating = true
	c.state.DisplayStatus = i18n.T("screen.display.evaluating", nil)
	c.log.Debug().Str("intercept_id", c.cfg.InterceptID).Msg("evaluating intercept")

	c.sdk.EvaluateIntercept(ctx, c.cfg.InterceptID, func(res sdk.TargetingResult) {
		c.ui.Dispatch(func() { c.onResult(ctx, gen, res) })
	})
	return true
}

func (c *Controller) onResult(ctx context.Context, gen uint64, res sdk.TargetingResult) {
	if gen != c.gen || !c.state.Initialized {
		c.log.Debug().Str("intercept_id", res.InterceptID).Msg("dropping stale evaluation result")
		return
	}
	c.state.Evaluating = false
	id := c.cfg.InterceptID

	if !res.Passed() {
		c.state.DisplayStatus = i18n.T("screen.display.not_qualified", nil)
		c.log.Info().Str("intercept_id", id).Stringer("result", res).
			Msg("intercept evaluation failed - user does not qualify")
		return
	}
	c.log.Info().Str("intercept_id", id).Msg("intercept evaluation passed")

	host, ok := c.hosts.ForegroundHost()
	if !ok {
		c.state.DisplayStatus = i18n.T("screen.display.no_host", nil)
		c.state.Err = fmt.Errorf("%w: intercept %s", ErrNoHostView, id)
		c.log.Error().Str("intercept_id", id).Msg("failed to display intercept: could not find root view")
		return
	}

	c.state.Displayed = true
	c.state.DisplayStatus = i18n.T("screen.display.passed", map[string]any{"InterceptID": id})
	c.state.Err = nil
	c.sdk.DisplayIntercept(ctx, id, host)
	c.log.Info().Str("intercept_id", id).Msg("intercept display passed - displaying intercept on root view")
}
