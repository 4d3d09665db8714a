package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"gemchat/internal/config"
)

func (c *CLI) runInit(configPath string) error {
	if configPath == "" {
		return errors.New("config path is required; use --config to set one")
	}

	store, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("config storage unavailable")
	}

	current, err := config.ResolveProfile(store, "")
	if err != nil {
		return err
	}
	if current.LogFile == "" {
		current.LogFile = config.DefaultLogFile()
	}

	reader := bufio.NewReader(c.stdin())

	model, err := c.prompt(reader, "Model", current.Model)
	if err != nil {
		return err
	}
	endpoint, err := c.prompt(reader, "Endpoint", current.Endpoint)
	if err != nil {
		return err
	}
	logFile, err := c.prompt(reader, "Log file", current.LogFile)
	if err != nil {
		return err
	}
	render, err := c.prompt(reader, "Render style (dark, light, notty, plain)", current.Render)
	if err != nil {
		return err
	}

	snapshot := config.Normalize(config.Config{
		Model:    model,
		Endpoint: endpoint,
		LogFile:  logFile,
		Render:   render,
	})

	if err := store.SaveDefault(snapshot); err != nil {
		return fmt.Errorf("save default config: %w", err)
	}

	fmt.Fprintf(c.stdout(), "Saved default configuration to %s\n", configPath)
	for _, line := range config.Summary(snapshot) {
		fmt.Fprintln(c.stdout(), line)
	}
	fmt.Fprintln(c.stdout(), "The API key is not stored here; gemchat asks for it once per terminal session.")

	return nil
}

func (c *CLI) prompt(reader *bufio.Reader, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(c.stdout(), "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(c.stdout(), "%s: ", label)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return current, nil
	}
	return input, nil
}
