// Package survey implements the survey form component: one form's field
// values, its submitting flag, submit-time validation and the delivery
// lifecycle.
package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/sheets"
)

// Sender delivers the serialized form to the remote endpoint. A non-success
// response is reported as *sheets.RejectionError; any other error is a
// transport failure.
type Sender interface {
	Send(ctx context.Context, fields []model.Pair) error
}

// Notifier shows a notification to the respondent.
type Notifier interface {
	Notify(n model.Notification)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(model.Notification)

func (f NotifierFunc) Notify(n model.Notification) { f(n) }

// Result describes how a submit attempt resolved.
type Result struct {
	Outcome      model.DeliveryOutcome
	Notification model.Notification
	StatusCode   int
	Duration     time.Duration
}

// Form owns the state of one form instance. It is not safe for concurrent
// use; callers serialize access the way a UI event loop would.
type Form struct {
	def        *model.Definition
	state      model.FormState
	submitting bool
	sender     Sender
	notifier   Notifier
}

// New returns a form with every field empty.
func New(def *model.Definition, sender Sender, notifier Notifier) *Form {
	return Restore(def, model.NewFormState(def.Keys()), sender, notifier)
}

// Restore returns a form holding a copy of state. Keys of state that the
// definition does not know are dropped; missing keys start empty.
func Restore(def *model.Definition, state model.FormState, sender Sender, notifier Notifier) *Form {
	fresh := model.NewFormState(def.Keys())
	for _, k := range state.Keys() {
		fresh.Set(k, state.Get(k))
	}
	if notifier == nil {
		notifier = NotifierFunc(func(model.Notification) {})
	}
	return &Form{def: def, state: fresh, sender: sender, notifier: notifier}
}

// Definition returns the survey variant the form renders.
func (f *Form) Definition() *model.Definition { return f.def }

// State returns a copy of the current values.
func (f *Form) State() model.FormState { return f.state.Clone() }

// Value returns the current value of key.
func (f *Form) Value(key string) string { return f.state.Get(key) }

// Submitting reports whether a delivery is outstanding.
func (f *Form) Submitting() bool { return f.submitting }

// UpdateText replaces the value of one free-text field. Any string is
// accepted, including partial or empty input.
func (f *Form) UpdateText(key, value string) error {
	field, ok := f.def.Field(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	if field.IsChoice() {
		return fmt.Errorf("%w: %s", ErrChoiceField, key)
	}
	f.state.Set(key, value)
	return nil
}

// SelectChoice records value as the single selection of a choice field,
// replacing any earlier selection.
func (f *Form) SelectChoice(key, value string) error {
	field, ok := f.def.Field(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	if !field.IsChoice() {
		return fmt.Errorf("%w: %s", ErrNotChoiceField, key)
	}
	if !field.HasOption(value) {
		return fmt.Errorf("%w: %s=%q", ErrUnknownOption, key, value)
	}
	f.state.Set(key, value)
	return nil
}

// Validate checks the form section by section and returns the first
// incomplete one as a *ValidationError: choice questions, then free-text
// questions, then profile fields.
func (f *Form) Validate() error {
	var choice, text []string
	for _, q := range f.def.Questions {
		v := f.state.Get(q.Key)
		if q.IsChoice() {
			if v == "" {
				choice = append(choice, q.Key)
			}
			continue
		}
		if strings.TrimSpace(v) == "" {
			text = append(text, q.Key)
		}
	}

	var profile []string
	for _, p := range f.def.Profile {
		if strings.TrimSpace(f.state.Get(p.Key)) == "" {
			profile = append(profile, p.Key)
		}
	}

	msgs := f.def.Messages
	switch {
	case len(choice) > 0:
		return &ValidationError{Group: GroupChoice, Message: msgs.ChoiceIncomplete, Fields: choice}
	case len(text) > 0:
		return &ValidationError{Group: GroupText, Message: msgs.TextIncomplete, Fields: text}
	case len(profile) > 0:
		return &ValidationError{Group: GroupProfile, Message: msgs.ProfileIncomplete, Fields: profile}
	}
	return nil
}

// Submit validates the form and, when complete, delivers every field in one
// request. On success the form is reset to empty; on failure the values are
// kept for a retry. Every path that gets past validation clears the
// submitting flag before returning.
func (f *Form) Submit(ctx context.Context) (Result, error) {
	if f.submitting {
		return Result{}, ErrSubmitInProgress
	}

	if err := f.Validate(); err != nil {
		var ve *ValidationError
		errors.As(err, &ve)
		n := model.Notification{Level: model.NotificationError, Title: ve.Message}
		f.notifier.Notify(n)
		return Result{Notification: n}, err
	}

	f.submitting = true
	defer func() { f.submitting = false }()

	start := time.Now()
	err := f.sender.Send(ctx, f.state.Pairs())
	res := Result{Duration: time.Since(start)}

	msgs := f.def.Messages
	var rej *sheets.RejectionError
	switch {
	case err == nil:
		res.Outcome = model.DeliveryDelivered
		res.Notification = model.Notification{
			Level:       model.NotificationSuccess,
			Title:       msgs.SuccessTitle,
			Description: msgs.SuccessDescription,
			DurationMS:  msgs.SuccessDurationMS,
		}
		f.notifier.Notify(res.Notification)
		f.state.Reset()
		return res, nil

	case errors.As(err, &rej):
		res.Outcome = model.DeliveryRejected
		res.StatusCode = rej.StatusCode
		res.Notification = model.Notification{Level: model.NotificationError, Title: msgs.Rejected}
		f.notifier.Notify(res.Notification)
		return res, fmt.Errorf("%w: %w", ErrRejected, err)

	default:
		res.Outcome = model.DeliveryFailed
		res.Notification = model.Notification{Level: model.NotificationError, Title: msgs.TransportFailed}
		f.notifier.Notify(res.Notification)
		return res, fmt.Errorf("%w: %w", ErrTransport, err)
	}
}
