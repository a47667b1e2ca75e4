package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/repository"
	"github.com/stemsi/medsurvey/internal/survey"
)

// DeliveryRecorder stores the audit record of a submission attempt.
type DeliveryRecorder interface {
	Record(ctx context.Context, d *model.Delivery) error
}

// FormView is what clients see of a form instance.
type FormView struct {
	FormID     string            `json:"form_id"`
	Token      string            `json:"token,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Definition *model.Definition `json:"definition,omitempty"`
	Values     map[string]string `json:"values"`
	Submitting bool              `json:"submitting"`
}

// SubmitResult is returned for every submit attempt, including failed ones.
type SubmitResult struct {
	Outcome      model.DeliveryOutcome `json:"outcome,omitempty"`
	Notification model.Notification    `json:"notification"`
	Fields       []string              `json:"incomplete_fields,omitempty"`
	Values       map[string]string     `json:"values"`
	Submitting   bool                  `json:"submitting"`
	// ResetFailed is set when the data was delivered but the emptied
	// state could not be stored.
	ResetFailed  bool                  `json:"reset_failed,omitempty"`
}

// FormService hosts survey form instances whose state lives in Redis.
type FormService struct {
	def        *model.Definition
	states     repository.FormStateRepository
	sender     survey.Sender
	tokens     *TokenService
	events     EventPublisher
	deliveries DeliveryRecorder
	lockTTL    time.Duration
	log        zerolog.Logger
}

// NewFormService creates a FormService. deliveries may be nil, in which case
// audit records are only logged.
func NewFormService(
	def *model.Definition,
	states repository.FormStateRepository,
	sender survey.Sender,
	tokens *TokenService,
	events EventPublisher,
	deliveries DeliveryRecorder,
	lockTTL time.Duration,
	log zerolog.Logger,
) *FormService {
	return &FormService{
		def:        def,
		states:     states,
		sender:     sender,
		tokens:     tokens,
		events:     events,
		deliveries: deliveries,
		lockTTL:    lockTTL,
		log:        log.With().Str("component", "form_service").Logger(),
	}
}

// Definition returns the survey variant served by this instance host.
func (s *FormService) Definition() *model.Definition { return s.def }

// Tokens returns the token service used to authenticate instances.
func (s *FormService) Tokens() *TokenService { return s.tokens }

// Open starts a new, empty form instance and issues its token.
func (s *FormService) Open(ctx context.Context) (*FormView, error) {
	formID := uuid.New().String()
	form := survey.New(s.def, s.sender, nil)

	if err := s.states.Create(ctx, formID, form.State()); err != nil {
		return nil, err
	}

	token, expires, err := s.tokens.Issue(formID, s.def.ID)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("form_id", formID).Msg("Form opened")

	return &FormView{
		FormID:     formID,
		Token:      token,
		ExpiresAt:  &expires,
		Definition: s.def,
		Values:     form.State().Map(),
	}, nil
}

// Get returns the current values and submitting flag of formID.
func (s *FormService) Get(ctx context.Context, formID string) (*FormView, error) {
	state, err := s.states.Load(ctx, formID, s.def.Keys())
	if err != nil {
		return nil, err
	}
	submitting, err := s.states.IsSubmitting(ctx, formID)
	if err != nil {
		return nil, err
	}
	return &FormView{FormID: formID, Values: state.Map(), Submitting: submitting}, nil
}

// UpdateText replaces one free-text field of formID.
func (s *FormService) UpdateText(ctx context.Context, formID, key, value string) (*FormView, error) {
	return s.update(ctx, formID, key, value, (*survey.Form).UpdateText)
}

// SelectChoice records the selection of one choice field of formID.
func (s *FormService) SelectChoice(ctx context.Context, formID, key, value string) (*FormView, error) {
	return s.update(ctx, formID, key, value, (*survey.Form).SelectChoice)
}

func (s *FormService) update(ctx context.Context, formID, key, value string, apply func(*survey.Form, string, string) error) (*FormView, error) {
	state, err := s.states.Load(ctx, formID, s.def.Keys())
	if err != nil {
		return nil, err
	}

	form := survey.Restore(s.def, state, s.sender, nil)
	if err := apply(form, key, value); err != nil {
		return nil, err
	}
	if err := s.states.SetField(ctx, formID, key, value); err != nil {
		return nil, err
	}

	return &FormView{FormID: formID, Values: form.State().Map()}, nil
}

// Submit runs the submit lifecycle for formID. The returned result carries
// the notification for every outcome, including validation failures; the
// error classifies the failure (see the survey package errors).
//
// The gate is taken before the state is read, so a second caller can never
// send values that an earlier submission already delivered and reset.
func (s *FormService) Submit(ctx context.Context, formID string) (*SubmitResult, error) {
	// The outbound request is not cancelled when the client goes away.
	ctx = context.WithoutCancel(ctx)

	gate, acquired, err := s.states.AcquireSubmit(ctx, formID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, survey.ErrSubmitInProgress
	}

	state, err := s.states.Load(ctx, formID, s.def.Keys())
	if err != nil {
		s.release(ctx, formID, gate)
		return nil, err
	}

	form := survey.Restore(s.def, state, s.sender, survey.NotifierFunc(func(n model.Notification) {
		s.publish(ctx, formID, model.FormEvent{Event: model.FormEventNotification, Notification: &n})
	}))

	if form.Validate() != nil {
		// Nothing is sent, so the instance never reports submitting.
		s.release(ctx, formID, gate)
	} else {
		s.publishSubmitting(ctx, formID, true)
		stop := s.holdGate(ctx, formID, gate)
		defer func() {
			stop()
			s.release(ctx, formID, gate)
			s.publishSubmitting(ctx, formID, false)
		}()
	}

	res, submitErr := form.Submit(ctx)

	result := &SubmitResult{
		Outcome:      res.Outcome,
		Notification: res.Notification,
		Values:       form.State().Map(),
	}

	var ve *survey.ValidationError
	if errors.As(submitErr, &ve) {
		result.Fields = ve.Fields
		return result, submitErr
	}

	s.record(ctx, formID, res)

	if res.Outcome == model.DeliveryDelivered {
		if err := s.states.Save(ctx, formID, form.State()); err != nil {
			// The endpoint already accepted the data.
			s.log.Error().Err(err).Str("form_id", formID).Msg("Reset form state failed")
			result.ResetFailed = true
			return result, nil
		}
		s.publish(ctx, formID, model.FormEvent{Event: model.FormEventState, Values: result.Values})
	}

	return result, submitErr
}

// holdGate refreshes the submit gate while a send is outstanding, so a slow
// endpoint cannot outlive it. The returned func stops the refresher and
// waits for it.
func (s *FormService) holdGate(ctx context.Context, formID, gate string) func() {
	interval := s.lockTTL / 3
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := s.states.RefreshSubmit(ctx, formID, gate, s.lockTTL)
				if err != nil {
					s.log.Warn().Err(err).Str("form_id", formID).Msg("Refresh submit gate failed")
					continue
				}
				if !held {
					s.log.Warn().Str("form_id", formID).Msg("Submit gate lost while sending")
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (s *FormService) release(ctx context.Context, formID, gate string) {
	if err := s.states.ReleaseSubmit(ctx, formID, gate); err != nil {
		s.log.Error().Err(err).Str("form_id", formID).Msg("Release submit gate failed")
	}
}

func (s *FormService) record(ctx context.Context, formID string, res survey.Result) {
	d := &model.Delivery{
		ID:         uuid.New(),
		FormID:     formID,
		Variant:    s.def.ID,
		Outcome:    res.Outcome,
		StatusCode: res.StatusCode,
		DurationMS: res.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	s.log.Info().
		Str("form_id", formID).
		Str("outcome", string(d.Outcome)).
		Int("status_code", d.StatusCode).
		Int64("duration_ms", d.DurationMS).
		Msg("Submission resolved")

	if s.deliveries == nil {
		return
	}
	if err := s.deliveries.Record(ctx, d); err != nil {
		s.log.Warn().Err(err).Str("form_id", formID).Msg("Queue delivery record failed")
	}
}

func (s *FormService) publishSubmitting(ctx context.Context, formID string, submitting bool) {
	s.publish(ctx, formID, model.FormEvent{Event: model.FormEventSubmitting, Submitting: &submitting})
}

func (s *FormService) publish(ctx context.Context, formID string, ev model.FormEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, formID, ev); err != nil {
		s.log.Warn().Err(err).Str("form_id", formID).Str("event", string(ev.Event)).Msg("Publish form event failed")
	}
}
