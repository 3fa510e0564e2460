// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the course-engine CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/course-engine/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// configErr holds a config file error until a command runs.
var configErr error

// rootCmd is the base command for the course-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "course-engine",
	Short: "Turn raw text into a structured multi-chapter course",
	Long: `course-engine asks an LLM for a table of contents, generates one chapter
per entry (summary, explanation and extension), and finishes with a course
summary. Every chapter is written to disk as soon as it is ready.

Runs are recorded in a local SQLite ledger that can be listed, searched
and exported with the runs subcommands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configErr
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./course-engine.yaml or ~/.config/course-engine/course-engine.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	used, err := config.Init(viper.GetViper(), cfgFile)
	if err != nil {
		configErr = err
		return
	}
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
