package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/definition"
	"github.com/stemsi/medsurvey/internal/logger"
	"github.com/stemsi/medsurvey/internal/prompt"
	"github.com/stemsi/medsurvey/internal/sheets"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	var (
		definitionPath = flag.String("definition", cfg.DefinitionPath, "Survey definition YAML (default: built-in medical survey)")
		sink           = flag.String("sink", cfg.Sink, "Where responses go: remote or xlsx")
		xlsxPath       = flag.String("xlsx", cfg.XLSXPath, "Workbook used by the xlsx sink")
	)
	flag.Parse()

	// Prompts own stdout; logs go to stderr.
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "survey-cli needs an interactive terminal")
		os.Exit(1)
	}

	def, err := definition.Load(*definitionPath, cfg.EndpointURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load survey definition")
	}

	sender, err := sheets.New(*sink, def.Endpoint, *xlsxPath, cfg.HTTPTimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build submission sink")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := prompt.NewRunner(def, sender, prompt.NewSurveyDriver(os.Stdout), log)
	delivered, err := runner.Run(ctx)
	switch {
	case errors.Is(err, prompt.ErrAborted), errors.Is(err, context.Canceled):
		fmt.Println("\nAborted.")
	case err != nil:
		log.Error().Err(err).Msg("Survey ended with an error")
		os.Exit(1)
	}

	fmt.Printf("Submitted %d response(s). Thank you!\n", delivered)
}
