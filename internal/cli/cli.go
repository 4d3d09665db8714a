package cli

import (
	"bytes"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"gemchat/internal/config"
	"gemchat/internal/credential"
)

// Runner starts the interactive chat with a resolved configuration.
type Runner func(cfg config.Config, store config.Store, verbose bool) error

// CLI coordinates subcommands and forwards resolved settings to the chat runtime.
type CLI struct {
	in     io.Reader
	out    io.Writer
	err    io.Writer
	runner Runner
	mirror func() credential.Mirror
}

func New(in io.Reader, out io.Writer, err io.Writer, runner Runner) *CLI {
	return &CLI{in: in, out: out, err: err, runner: runner, mirror: credential.DefaultMirror}
}

// Run executes the command line given in args (without the program name).
func (c *CLI) Run(args []string) error {
	root := c.Command()
	root.SetArgs(args)
	return root.Execute()
}

// Command builds the cobra command tree.
func (c *CLI) Command() *cobra.Command {
	flags := &chatFlags{}

	root := &cobra.Command{
		Use:   "gemchat",
		Short: "Chat with a Gemini model from the terminal",
		Long: `gemchat is a minimal terminal chat client for the Gemini API.

Run without arguments to start chatting. The API key is asked for on first
use and kept only for the current terminal session.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runChat(flags)
		},
	}
	root.SetIn(c.stdin())
	root.SetOut(c.stdout())
	root.SetErr(c.stderr())

	root.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultPath(), "path to gemchat config file")
	flags.register(root)

	withFlags := &chatFlags{}
	withCmd := &cobra.Command{
		Use:   "with <profile>",
		Short: "Start chatting with a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withFlags.configPath = flags.configPath
			withFlags.profile = args[0]
			return c.runChat(withFlags)
		},
	}
	withFlags.register(withCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(flags.configPath)
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget",
		Short: "Forget the API key cached for this terminal session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runForget()
		},
	}

	root.AddCommand(withCmd, initCmd, forgetCmd)
	return root
}

func (c *CLI) runChat(flags *chatFlags) error {
	resolved, store, err := flags.resolve()
	if err != nil {
		return err
	}
	if c.runner == nil {
		return errors.New("chat runner not configured")
	}
	return c.runner(resolved, store, flags.verbose)
}

func (c *CLI) runForget() error {
	store := credential.New(c.mirror(), nil)
	if err := store.Forget(); err != nil {
		return err
	}
	_, _ = io.WriteString(c.stdout(), "Forgot the API key for this terminal session\n")
	return nil
}

func (c *CLI) stdin() io.Reader {
	if c.in != nil {
		return c.in
	}
	return bytes.NewReader(nil)
}

func (c *CLI) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return io.Discard
}

func (c *CLI) stderr() io.Writer {
	if c.err != nil {
		return c.err
	}
	return io.Discard
}
