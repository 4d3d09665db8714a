package chat

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"gemchat/internal/config"
	"gemchat/internal/credential"
	"gemchat/internal/generation"
	"gemchat/internal/logging"
)

// EnvAPIKey seeds the credential store when nothing was restored.
const EnvAPIKey = "GEMINI_API_KEY"

// RunOptions is what the CLI resolved before starting the chat.
type RunOptions struct {
	Config  config.Config
	Store   config.Store
	Verbose bool
}

// Run wires logging, the credential store, the generation client and the
// session together, then blocks in the terminal UI until the user quits.
func Run(opts RunOptions) error {
	cfg := config.Normalize(opts.Config)

	logger, err := logging.New(cfg.LogFile, opts.Verbose)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	creds := credential.New(credential.DefaultMirror(), logger)
	if !creds.IsConfigured() {
		if creds.Set(os.Getenv(EnvAPIKey)) {
			logger.Info("credential seeded from environment", zap.String("variable", EnvAPIKey))
		}
	}

	client := generation.NewClient(generation.Options{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		Logger:   logger,
	})

	session, err := NewSession(Options{
		Config:      cfg,
		Store:       opts.Store,
		Credentials: creds,
		Generator:   client,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info("chat starting", zap.String("model", cfg.Model), zap.Bool("configured", creds.IsConfigured()))

	uiErr := runBubbleUI(session, creds, uiOptions{model: cfg.Model, render: cfg.Render})
	if err := session.Shutdown(); err != nil {
		return err
	}
	if uiErr != nil && !errors.Is(uiErr, ErrQuit) {
		return fmt.Errorf("ui error: %w", uiErr)
	}
	return nil
}
