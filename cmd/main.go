package main

import (
	"fmt"
	"os"

	"gemchat/internal/chat"
	"gemchat/internal/cli"
	"gemchat/internal/config"
)

func main() {
	args := os.Args[1:]

	program := cli.New(os.Stdin, os.Stdout, os.Stderr, func(cfg config.Config, store config.Store, verbose bool) error {
		return chat.Run(chat.RunOptions{Config: cfg, Store: store, Verbose: verbose})
	})
	if err := program.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
