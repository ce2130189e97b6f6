// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyQuestion is returned by Prepare for blank input. Submit treats
	// it as a no-op and front ends do not display it.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrBusy is returned while a previous question is still being sent.
	ErrBusy = errors.New("a question is already being sent")

	errSendAborted = errors.New("send aborted")
)

// Sender submits questions. *api.Client implements it.
type Sender interface {
	Send(ctx context.Context, req api.SendRequest) (*api.SendResponse, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns one chat session.
type Controller struct {
	log      *model.Log
	conn     *conn.Manager
	resolver *endpoint.Resolver
	logger   *zap.Logger

	// connMu serializes parameter resolution with the Open or Close it
	// triggers, so the last parameters applied own the connection.
	connMu sync.Mutex

	mu       sync.Mutex
	sender   Sender
	params   endpoint.Params
	settings Settings
	busy     bool
	question string
	sendErr  string
	onBusy   func(bool)
}

// Options wires a Controller. Log, Conn, Resolver and Sender are required.
type Options struct {
	Log      *model.Log
	Conn     *conn.Manager
	Resolver *endpoint.Resolver
	Sender   Sender
	Logger   *zap.Logger
	Settings Settings
	Params   endpoint.Params
}

// New creates a controller. Nothing connects until Start.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		log:      opts.Log,
		conn:     opts.Conn,
		resolver: opts.Resolver,
		sender:   opts.Sender,
		logger:   logger.Named("session"),
		params:   opts.Params,
		settings: opts.Settings,
	}
	c.conn.SetPolicy(opts.Settings.Policy)
	return c
}

// FromConfig builds a controller with a websocket connection manager and an
// HTTP send client configured from cfg.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	log := model.NewLog()
	return New(Options{
		Log:      log,
		Conn:     conn.NewManager(log, conn.WithLogger(logger), conn.WithPolicy(settings.Policy)),
		Resolver: endpoint.NewResolver(cfg.Server.WSURL, cfg.Server.APIKey),
		Sender:   NewSender(cfg, logger),
		Logger:   logger,
		Settings: settings,
		Params:   ParamsFromConfig(cfg),
	}), nil
}

// NewSender builds the HTTP send client described by cfg.
func NewSender(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.Server.APIURL, cfg.Server.APIKey).
		WithSendPath(cfg.Server.SendPath).
		WithTimeout(time.Duration(cfg.Server.SendTimeoutSecs) * time.Second).
		WithLogger(logger)
}

// ApplyConfig adopts a reloaded configuration: settings, endpoints and
// session parameters. A changed streaming URL reconnects.
func (c *Controller) ApplyConfig(cfg *config.Config) error {
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := c.SetSettings(settings); err != nil {
		return err
	}
	c.mu.Lock()
	c.sender = NewSender(cfg, c.logger)
	c.mu.Unlock()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.resolver.SetBase(cfg.Server.WSURL, cfg.Server.APIKey)
	return c.setParamsLocked(ParamsFromConfig(cfg))
}

// Log returns the message log.
func (c *Controller) Log() *model.Log {
	return c.log
}

// OnBusyChange registers fn to observe busy flag transitions. fn runs on
// the goroutine that calls Prepare or Complete.
func (c *Controller) OnBusyChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBusy = fn
}

// =============================================================================
// CONNECTION LIFECYCLE
// =============================================================================

// Start resolves the current parameters and connects if they are complete.
// It may run concurrently with SetParams; whichever runs last decides the
// connection.
func (c *Controller) Start() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.mu.Lock()
	p := c.params
	c.mu.Unlock()
	return c.apply(p)
}

// SetParams replaces the session parameters. Unchanged parameters leave the
// connection alone; a new URL reconnects; incomplete parameters disconnect.
func (c *Controller) SetParams(p endpoint.Params) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.setParamsLocked(p)
}

func (c *Controller) setParamsLocked(p endpoint.Params) error {
	c.mu.Lock()
	c.params = p
	c.mu.Unlock()
	return c.apply(p)
}

// apply must be called with connMu held.
func (c *Controller) apply(p endpoint.Params) error {
	url, change := c.resolver.Update(p)
	switch change {
	case endpoint.Resolved:
		c.logger.Info("session resolved",
			zap.String("session", p.SessionID),
			zap.Bool("proxy", p.ProxyEnabled),
			zap.String("url", endpoint.Redact(url)))
		err := c.conn.Open(url)
		var aoe *conn.AlreadyOpenError
		if errors.As(err, &aoe) {
			return nil
		}
		return err
	case endpoint.Unresolved:
		c.logger.Info("session parameters incomplete", zap.Strings("missing", p.Missing()))
		c.conn.Close()
	case endpoint.Unchanged:
		// A dropped connection to the same URL is reopened on request.
		if url != "" && c.conn.State() == conn.StateClosed {
			return c.conn.Open(url)
		}
	}
	return nil
}

// Reconnect reopens the resolved URL after a drop.
func (c *Controller) Reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	url := c.resolver.Current()
	if url == "" {
		return nil
	}
	if c.conn.State() == conn.StateOpen || c.conn.State() == conn.StateConnecting {
		return nil
	}
	return c.conn.Open(url)
}

// Params returns the current session parameters.
func (c *Controller) Params() endpoint.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// ConnState returns the connection state.
func (c *Controller) ConnState() conn.State {
	return c.conn.State()
}

// ConnErr returns the error behind the last disconnect.
func (c *Controller) ConnErr() error {
	return c.conn.Err()
}

// Events delivers transport events to be passed to Dispatch.
func (c *Controller) Events() <-chan conn.Event {
	return c.conn.Events()
}

// Next awaits the next transport event.
func (c *Controller) Next(ctx context.Context) (conn.Event, error) {
	return c.conn.Next(ctx)
}

// Dispatch applies a transport event on the caller's loop.
func (c *Controller) Dispatch(ev conn.Event) conn.Update {
	return c.conn.Dispatch(ev)
}

// Pump dispatches transport events until ctx is done, calling handle with
// each non-stale update. Callers stop it by cancelling ctx.
func (c *Controller) Pump(ctx context.Context, handle func(conn.Update)) error {
	return c.conn.Pump(ctx, handle)
}

// Shutdown releases the connection. Safe to call more than once.
func (c *Controller) Shutdown() {
	c.conn.Close()
}

// =============================================================================
// MESSAGES AND SETTINGS
// =============================================================================

// NewChat clears the log. It reports false when there was nothing to clear.
func (c *Controller) NewChat() bool {
	if c.log.Len() == 0 {
		return false
	}
	c.log.Clear()
	c.logger.Info("new chat")
	return true
}

// Settings returns the current chat settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings validates and applies s.
func (c *Controller) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	c.conn.SetPolicy(s.Policy)
	return nil
}

// UpdateSettings applies fn to a copy of the settings and keeps the result
// if it validates.
func (c *Controller) UpdateSettings(fn func(*Settings)) error {
	s := c.Settings()
	fn(&s)
	return c.SetSettings(s)
}

// =============================================================================
// QUESTION AND SEND
// =============================================================================

// SetQuestion records the text currently in the input.
func (c *Controller) SetQuestion(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.question = text
}

// Question returns the pending question text.
func (c *Controller) Question() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.question
}

// Busy reports whether a send is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SendError returns the detail of the last failed send, or "".
func (c *Controller) SendError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendErr
}

// DismissSendError clears the displayed send failure.
func (c *Controller) DismissSendError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = ""
}

// UIState derives the header and affordances from the current state.
func (c *Controller) UIState() UIState {
	return Derive(c.conn.State(), c.Question())
}

// normalizeQuestion trims and NFC-normalizes user input.
func normalizeQuestion(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Prepare validates text and builds its send request. On success the busy
// flag is set and the Client turn is already in the log; the caller must
// then call Complete exactly once.
func (c *Controller) Prepare(text string) (api.SendRequest, error) {
	question := normalizeQuestion(text)
	if question == "" {
		return api.SendRequest{}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return api.SendRequest{}, ErrBusy
	}
	req := api.SendRequest{
		Channel:     c.params.SessionID,
		Question:    question,
		System:      c.settings.SystemPrompt,
		Temperature: c.settings.Temperature,
		Model:       c.settings.Model,
		Sources:     c.settings.Sources,
		Context:     api.NewContext(c.settings.StoreKind, c.params.BucketName, c.params.FilePath),
	}
	c.question = text
	if err := req.Validate(); err != nil {
		rej := &api.SendRejectedError{Detail: err.Error(), Err: err}
		c.sendErr = rej.Detail
		c.mu.Unlock()
		return api.SendRequest{}, rej
	}
	c.busy = true
	c.sendErr = ""
	onBusy := c.onBusy
	c.mu.Unlock()

	if onBusy != nil {
		onBusy(true)
	}
	c.log.Append(model.ClientTurn(question))
	return req, nil
}

// Send issues the request/response call. It does not touch controller
// state and may run off the event loop.
func (c *Controller) Send(ctx context.Context, req api.SendRequest) error {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()

	_, err := sender.Send(ctx, req)
	return err
}

// Complete finishes a prepared send. On success the pending question is
// cleared; on failure the question is kept and the error detail is recorded
// for display. The busy flag is cleared either way.
func (c *Controller) Complete(err error) {
	c.mu.Lock()
	c.busy = false
	if err == nil {
		c.question = ""
		c.sendErr = ""
	} else {
		c.sendErr = detailOf(err)
	}
	onBusy := c.onBusy
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("send failed", zap.Error(err))
	}
	if onBusy != nil {
		onBusy(false)
	}
}

// Submit sends text and waits for the service to accept it. Blank input is
// ignored and returns nil. A failed send returns *api.SendRejectedError.
func (c *Controller) Submit(ctx context.Context, text string) error {
	req, err := c.Prepare(text)
	if errors.Is(err, ErrEmptyQuestion) {
		return nil
	}
	if err != nil {
		return err
	}

	sendErr := errSendAborted
	defer func() { c.Complete(sendErr) }()
	sendErr = c.Send(ctx, req)
	return sendErr
}

func detailOf(err error) string {
	var rej *api.SendRejectedError
	if errors.As(err, &rej) {
		return rej.Detail
	}
	return err.Error()
}
