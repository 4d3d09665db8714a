package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gemchat/internal/config"
)

type chatFlags struct {
	configPath string
	profile    string
	model      string
	endpoint   string
	logFile    string
	render     string
	verbose    bool
}

func (f *chatFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.profile, "profile", "", "saved profile to load")
	fs.StringVar(&f.model, "model", "", "model name (default "+config.DefaultModel+")")
	fs.StringVar(&f.endpoint, "endpoint", "", "generation API base URL")
	fs.StringVar(&f.logFile, "log-file", "", "write logs to this file")
	fs.StringVar(&f.render, "render", "", "reply rendering: dark, light, notty or plain")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
}

// resolve loads the config file, applies the profile and then the flag
// overrides on top of it.
func (f *chatFlags) resolve() (config.Config, config.Store, error) {
	store, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	profile := strings.TrimSpace(f.profile)
	if store == nil && profile != "" {
		return config.Config{}, nil, fmt.Errorf("profile %q requested but config %q not found", profile, f.configPath)
	}

	base, err := config.ResolveProfile(store, profile)
	if err != nil {
		return config.Config{}, store, err
	}

	overrides := config.Config{
		Model:    f.model,
		Endpoint: f.endpoint,
		LogFile:  f.logFile,
		Render:   f.render,
	}

	merged := config.Merge(base, overrides)
	if merged.LogFile == "" {
		merged.LogFile = config.DefaultLogFile()
	}
	return config.Normalize(merged), store, nil
}
