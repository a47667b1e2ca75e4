package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/survey"
)

// Runner walks respondents through a definition in the terminal and submits
// each completed response.
type Runner struct {
	def    *model.Definition
	sender survey.Sender
	driver Driver
	log    zerolog.Logger
}

func NewRunner(def *model.Definition, sender survey.Sender, driver Driver, log zerolog.Logger) *Runner {
	return &Runner{
		def:    def,
		sender: sender,
		driver: driver,
		log:    log.With().Str("component", "prompt_runner").Logger(),
	}
}

// Run collects responses until the respondent declines another one. It
// returns the number of delivered submissions.
func (r *Runner) Run(ctx context.Context) (int, error) {
	delivered := 0
	if err := r.driver.Info(ctx, r.banner()); err != nil {
		return 0, err
	}

	for {
		form := survey.New(r.def, r.sender, survey.NotifierFunc(func(n model.Notification) {
			_ = r.driver.Info(ctx, formatNotification(n))
		}))

		if err := r.complete(ctx, form); err != nil {
			return delivered, err
		}
		delivered++

		again, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Fill out another response?"})
		if err != nil {
			return delivered, err
		}
		if !again {
			return delivered, nil
		}
	}
}

// complete asks every field, then submits until the form is delivered. The
// form keeps its values across failed attempts.
func (r *Runner) complete(ctx context.Context, form *survey.Form) error {
	pending := r.def.Keys()

	for {
		if err := r.ask(ctx, form, pending); err != nil {
			return err
		}

		ok, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Submit your answers?", Default: true})
		if err != nil {
			return err
		}
		if !ok {
			pending = r.def.Keys()
			continue
		}

		res, err := form.Submit(ctx)
		if err == nil {
			r.log.Info().Dur("duration", res.Duration).Msg("Response delivered")
			return nil
		}

		var ve *survey.ValidationError
		if errors.As(err, &ve) {
			pending = ve.Fields
			continue
		}

		r.log.Warn().Err(err).Int("status_code", res.StatusCode).Msg("Submission failed")
		retry, cerr := r.driver.Confirm(ctx, ConfirmConfig{Message: "Try again with the same answers?", Default: true})
		if cerr != nil {
			return cerr
		}
		if !retry {
			return err
		}
		pending = nil
	}
}

func (r *Runner) ask(ctx context.Context, form *survey.Form, keys []string) error {
	for _, key := range keys {
		field, ok := r.def.Field(key)
		if !ok {
			continue
		}

		if field.IsChoice() {
			idx, err := r.driver.Select(ctx, SelectConfig{
				Message:      field.Label,
				Options:      field.Options,
				DefaultIndex: indexOf(field.Options, form.Value(key)),
			})
			if err != nil {
				return err
			}
			if idx < 0 || idx >= len(field.Options) {
				return fmt.Errorf("select %s: index %d out of range", key, idx)
			}
			if err := form.SelectChoice(key, field.Options[idx]); err != nil {
				return err
			}
			continue
		}

		value, err := r.driver.Input(ctx, InputConfig{
			Message: field.Label,
			Default: form.Value(key),
			Help:    field.Placeholder,
		})
		if err != nil {
			return err
		}
		if err := form.UpdateText(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) banner() string {
	if r.def.Description == "" {
		return r.def.Title
	}
	return r.def.Title + "\n" + r.def.Description
}

func formatNotification(n model.Notification) string {
	if n.Description == "" {
		return n.Title
	}
	return n.Title + "\n  " + n.Description
}

func indexOf(options []string, value string) int {
	for i, option := range options {
		if option == value {
			return i
		}
	}
	return -1
}
