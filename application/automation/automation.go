package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
	"autocloudskill/domain/interfaces"
	"autocloudskill/infrastructure/browser"
	"autocloudskill/infrastructure/captcha"
	"autocloudskill/infrastructure/mail"
	"autocloudskill/infrastructure/storage"
	"autocloudskill/infrastructure/video"
)

// Automation is the public face of the orchestration core. Every method
// returns a structured RunResult and never lets an internal fault escape;
// all browser work is serialized through the bridge.
type Automation struct {
	cfg      *config.Config
	log      *zap.Logger
	bridge   *Bridge
	session  *browser.Session
	resolver *browser.Resolver
	solver   *captcha.Solver
	confirm  *ConfirmFlow
	lab      *LabFlow
	store    *storage.RunStore

	identity  interfaces.ProfileSource
	addresses interfaces.AddressProvider
	mailbox   *mail.MailboxClient
}

// Options carries the external collaborators the core consumes. Any of them
// may be nil; the dependent operations then report failure instead.
type Options struct {
	Transcriber interfaces.Transcriber
	Identity    interfaces.ProfileSource
	Addresses   interfaces.AddressProvider
	Mailbox     *mail.MailboxClient
}

// New - wires the automation core from configuration
func New(cfg *config.Config, log *zap.Logger, opts Options) (*Automation, error) {
	store, err := storage.NewRunStore(filepath.Dir(cfg.Browser.StateFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	session := browser.NewSession(cfg, log)
	resolver := browser.NewResolver(log)
	solver := captcha.NewSolver(opts.Transcriber, cfg.Timeouts, log)

	return &Automation{
		cfg:       cfg,
		log:       log.Named("automation"),
		bridge:    NewBridge(log),
		session:   session,
		resolver:  resolver,
		solver:    solver,
		confirm:   NewConfirmFlow(cfg, session, resolver, log),
		lab:       NewLabFlow(cfg, session, resolver, solver, log),
		store:     store,
		identity:  opts.Identity,
		addresses: opts.Addresses,
		mailbox:   opts.Mailbox,
	}, nil
}

// Register runs the registration flow for the given profile.
func (a *Automation) Register(profile entities.ProfileRecord) entities.RunResult {
	var result entities.RunResult

	err := a.runBlocking("register", func(ctx context.Context) {
		flow := newBrowserFlow(a.cfg, a.session, a.resolver, a.solver, a.log)
		machine := NewRegistrationMachine(flow, a.cfg.Browser.KeepOpen, a.log)
		result = machine.Run(ctx, profile)
	})
	if err != nil {
		return a.bridgeFailure(err)
	}

	if result.Success {
		if err := a.store.SaveAccount(storage.AccountRecord{
			Email:     profile.Email,
			Password:  profile.Password,
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			a.log.Warn("failed to persist account", zap.Error(err))
		}
	}
	a.recordRun(result)
	return result
}

// RegisterGenerated builds a profile from the identity provider and a fresh
// relay address, then registers it. The credentials land in the payload.
func (a *Automation) RegisterGenerated() entities.RunResult {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeouts.Operation)
	defer cancel()

	if a.identity == nil || a.addresses == nil {
		return a.failure("identity and address providers are not configured")
	}

	profile, err := a.identity.GenerateProfile(ctx)
	if err != nil {
		return a.failure(fmt.Sprintf("identity generation failed: %v", err))
	}

	address, err := a.addresses.CreateAddress(ctx,
		fmt.Sprintf("%s %s registration", profile.FirstName, profile.LastName))
	if err != nil {
		return a.failure(fmt.Sprintf("relay address creation failed: %v", err))
	}
	profile.Email = address.Email

	result := a.Register(profile)
	result.WithPayload("email", profile.Email)
	result.WithPayload("password", profile.Password)
	return result
}

// ConfirmViaLink opens the confirmation link and signs in with the given
// credentials when a login form follows.
func (a *Automation) ConfirmViaLink(link, email, password string) entities.RunResult {
	var result entities.RunResult

	err := a.runBlocking("confirm", func(ctx context.Context) {
		result = a.confirm.Run(ctx, link, email, password)
	})
	if err != nil {
		return a.bridgeFailure(err)
	}

	if result.Success && result.Payload["confirmed"] == "true" && email != "" {
		if err := a.store.MarkConfirmed(email); err != nil {
			a.log.Debug("account not marked confirmed", zap.Error(err))
		}
	}
	a.recordRun(result)
	return result
}

// AwaitAndConfirm polls the mailbox for the confirmation link, then runs
// ConfirmViaLink with it.
func (a *Automation) AwaitAndConfirm(email, password string) entities.RunResult {
	if a.mailbox == nil {
		return a.failure("mailbox provider is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeouts.Operation)
	defer cancel()

	link, err := a.mailbox.WaitForVerificationLink(ctx, email, 5*time.Second)
	if err != nil {
		return a.failure(fmt.Sprintf("confirmation mail never arrived: %v", err))
	}
	return a.ConfirmViaLink(link, email, password)
}

// StartLab runs the provisioning sub-flow against a lab page.
func (a *Automation) StartLab(labURL string) entities.RunResult {
	var result entities.RunResult

	err := a.runBlocking("start_lab", func(ctx context.Context) {
		result = a.lab.Run(ctx, labURL)
	})
	if err != nil {
		return a.bridgeFailure(err)
	}
	a.recordRun(result)
	return result
}

// GenerateVideo renders a clip with the API key a lab run extracted. The
// work is pure API traffic; it does not touch the browser session.
func (a *Automation) GenerateVideo(apiKey, prompt string) entities.RunResult {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeouts.Operation)
	defer cancel()

	generator, err := video.NewGenerator(ctx, apiKey, a.cfg.Services, a.log)
	if err != nil {
		return a.failure(fmt.Sprintf("video generator unavailable: %v", err))
	}

	result := entities.RunResult{
		RunID: uuid.NewString(),
		State: entities.StateSuccess,
	}
	outputPath := filepath.Join(filepath.Dir(a.cfg.Browser.StateFile), "videos", result.RunID+".mp4")
	if err := generator.GenerateVideo(ctx, video.Request{Prompt: prompt}, outputPath); err != nil {
		return a.failure(fmt.Sprintf("video generation failed: %v", err))
	}

	result.Success = true
	result.WithPayload("video_path", outputPath)
	a.recordRun(result)
	return result
}

// Accounts exposes the stored account records to the presentation layer.
func (a *Automation) Accounts() ([]storage.AccountRecord, error) {
	return a.store.Accounts()
}

// History exposes past run results.
func (a *Automation) History() ([]entities.RunResult, error) {
	return a.store.History()
}

// Shutdown flushes session state and tears everything down. Safe to call
// repeatedly.
func (a *Automation) Shutdown() error {
	err := a.session.Close()
	a.bridge.Stop()
	if err != nil {
		a.log.Warn("session teardown reported an error", zap.Error(err))
	}
	return err
}

// runBlocking wraps an operation with the run-level timeout and pushes it
// through the bridge.
func (a *Automation) runBlocking(name string, fn func(context.Context)) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeouts.Operation)
	defer cancel()

	return a.bridge.Run(ctx, name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

func (a *Automation) bridgeFailure(err error) entities.RunResult {
	return a.failure(fmt.Sprintf("operation could not run: %v", err))
}

func (a *Automation) failure(message string) entities.RunResult {
	result := entities.RunResult{
		RunID:   uuid.NewString(),
		Success: false,
		State:   entities.StateError,
		Error:   message,
	}
	a.recordRun(result)
	return result
}

func (a *Automation) recordRun(result entities.RunResult) {
	if err := a.store.AppendRun(result); err != nil {
		a.log.Warn("failed to record run", zap.Error(err))
	}
}
