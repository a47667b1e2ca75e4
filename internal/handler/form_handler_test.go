package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/definition"
	"github.com/stemsi/medsurvey/internal/middleware"
	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/repository"
	"github.com/stemsi/medsurvey/internal/response"
	"github.com/stemsi/medsurvey/internal/service"
	"github.com/stemsi/medsurvey/internal/survey"
	"github.com/stemsi/medsurvey/internal/validator"
	"github.com/stemsi/medsurvey/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type MockFormService struct {
	mock.Mock
}

func (m *MockFormService) Definition() *model.Definition {
	return m.Called().Get(0).(*model.Definition)
}

func (m *MockFormService) Open(ctx context.Context) (*service.FormView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormView), args.Error(1)
}

func (m *MockFormService) Get(ctx context.Context, formID string) (*service.FormView, error) {
	args := m.Called(ctx, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormView), args.Error(1)
}

func (m *MockFormService) UpdateText(ctx context.Context, formID, key, value string) (*service.FormView, error) {
	args := m.Called(ctx, formID, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormView), args.Error(1)
}

func (m *MockFormService) SelectChoice(ctx context.Context, formID, key, value string) (*service.FormView, error) {
	args := m.Called(ctx, formID, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormView), args.Error(1)
}

func (m *MockFormService) Submit(ctx context.Context, formID string) (*service.SubmitResult, error) {
	args := m.Called(ctx, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmitResult), args.Error(1)
}

const testFormID = "0b7c1c3e-6a43-4bb5-9d2f-0f1f7f1d1a11"

// newTestRouter mounts h behind a middleware that injects claims for testFormID.
func newTestRouter(h *FormHandler) *gin.Engine {
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	withClaims := func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.FormClaims{FormID: testFormID, Variant: "medical-survey"})
		c.Next()
	}
	r.GET("/api/v1/definition", h.GetDefinition)
	r.POST("/api/v1/forms", h.OpenForm)
	forms := r.Group("/api/v1/forms/current", withClaims)
	forms.GET("", h.GetForm)
	forms.PUT("/fields/:key", h.UpdateText)
	forms.PUT("/choices/:key", h.SelectChoice)
	forms.POST("/submit", h.Submit)
	return r
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestFormHandler_OpenForm(t *testing.T) {
	forms := new(MockFormService)
	expires := time.Now().Add(time.Hour)
	forms.On("Open", mock.Anything).Return(&service.FormView{
		FormID:    testFormID,
		Token:     "signed",
		ExpiresAt: &expires,
		Values:    map[string]string{"q1": ""},
	}, nil)

	w, env := do(newTestRouter(NewFormHandler(forms, zerolog.Nop())), http.MethodPost, "/api/v1/forms", "")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, env.Error)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "signed", data["token"])
	assert.NotEmpty(t, env.Metadata.RequestID)
}

func TestFormHandler_GetDefinition(t *testing.T) {
	forms := new(MockFormService)
	forms.On("Definition").Return(definition.Builtin())

	w, env := do(newTestRouter(NewFormHandler(forms, zerolog.Nop())), http.MethodGet, "/api/v1/definition", "")

	assert.Equal(t, http.StatusOK, w.Code)
	def := env.Data.(map[string]interface{})["definition"].(map[string]interface{})
	assert.Equal(t, "medical-survey", def["id"])
	assert.NotContains(t, w.Body.String(), "script.google.com", "endpoint stays server-side")
}

func TestFormHandler_UpdateText(t *testing.T) {
	forms := new(MockFormService)
	forms.On("UpdateText", mock.Anything, testFormID, "q1", "").
		Return(&service.FormView{FormID: testFormID, Values: map[string]string{"q1": ""}}, nil)

	w, _ := do(newTestRouter(NewFormHandler(forms, zerolog.Nop())), http.MethodPut, "/api/v1/forms/current/fields/q1", `{"value":""}`)

	assert.Equal(t, http.StatusOK, w.Code, "empty input is a valid update")
	forms.AssertExpectations(t)
}

func TestFormHandler_UpdateRequiresValue(t *testing.T) {
	forms := new(MockFormService)

	w, env := do(newTestRouter(NewFormHandler(forms, zerolog.Nop())), http.MethodPut, "/api/v1/forms/current/fields/q1", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "value")
	forms.AssertNotCalled(t, "UpdateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFormHandler_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{name: "unknown field", err: survey.ErrUnknownField, status: http.StatusNotFound, code: response.ErrUnknownField},
		{name: "unknown option", err: survey.ErrUnknownOption, status: http.StatusUnprocessableEntity, code: response.ErrUnknownOption},
		{name: "kind mismatch", err: survey.ErrNotChoiceField, status: http.StatusUnprocessableEntity, code: response.ErrFieldKind},
		{name: "expired", err: repository.ErrFormNotFound, status: http.StatusGone, code: response.ErrFormExpired},
		{name: "redis down", err: errors.New("dial tcp"), status: http.StatusInternalServerError, code: response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forms := new(MockFormService)
			forms.On("SelectChoice", mock.Anything, testFormID, "q1", "E").
				Return(nil, fmt.Errorf("select q1: %w", tt.err))

			w, env := do(newTestRouter(NewFormHandler(forms, zerolog.Nop())), http.MethodPut, "/api/v1/forms/current/choices/q1", `{"value":"E"}`)

			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestFormHandler_Submit(t *testing.T) {
	def := definition.Builtin()
	kept := map[string]string{"q1": "Amlodipine"}

	tests := []struct {
		name    string
		result  *service.SubmitResult
		err     error
		status  int
		code    response.ErrCode
		message string
	}{
		{
			name: "delivered",
			result: &service.SubmitResult{
				Outcome:      model.DeliveryDelivered,
				Notification: model.Notification{Level: model.NotificationSuccess, Title: def.Messages.SuccessTitle},
				Values:       map[string]string{"q1": ""},
			},
			status: http.StatusOK,
		},
		{
			name: "delivered but reset not stored",
			result: &service.SubmitResult{
				Outcome:      model.DeliveryDelivered,
				Notification: model.Notification{Level: model.NotificationSuccess, Title: def.Messages.SuccessTitle},
				Values:       map[string]string{"q1": ""},
				ResetFailed:  true,
			},
			status: http.StatusOK,
		},
		{
			name: "incomplete",
			result: &service.SubmitResult{
				Notification: model.Notification{Level: model.NotificationError, Title: def.Messages.TextIncomplete},
				Fields:       []string{"q2"},
				Values:       kept,
			},
			err:     &survey.ValidationError{Group: survey.GroupText, Message: def.Messages.TextIncomplete, Fields: []string{"q2"}},
			status:  http.StatusUnprocessableEntity,
			code:    response.ErrIncompleteForm,
			message: def.Messages.TextIncomplete,
		},
		{
			name: "rejected",
			result: &service.SubmitResult{
				Outcome:      model.DeliveryRejected,
				Notification: model.Notification{Level: model.NotificationError, Title: def.Messages.Rejected},
				Values:       kept,
			},
			err:     fmt.Errorf("%w: status 500", survey.ErrRejected),
			status:  http.StatusBadGateway,
			code:    response.ErrSubmissionRejected,
			message: def.Messages.Rejected,
		},
		{
			name: "transport",
			result: &service.SubmitResult{
				Outcome:      model.DeliveryFailed,
				Notification: model.Notification{Level: model.NotificationError, Title: def.Messages.TransportFailed},
				Values:       kept,
			},
			err:     fmt.Errorf("%w: connection refused", survey.ErrTransport),
			status:  http.StatusBadGateway,
			code:    response.ErrSubmissionFailed,
			message: def.Messages.TransportFailed,
		},
		{
			name:    "gate held",
			err:     survey.ErrSubmitInProgress,
			status:  http.StatusConflict,
			code:    response.ErrSubmitInProgress,
			message: response.GetMessage(response.ErrSubmitInProgress),
		},
		{
			name:    "expired",
			err:     repository.ErrFormNotFound,
			status:  http.StatusGone,
			code:    response.ErrFormExpired,
			message: response.GetMessage(response.ErrFormExpired),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forms := new(MockFormService)
			if tt.result != nil {
				forms.On("Submit", mock.Anything, testFormID).Return(tt.result, tt.err)
			} else {
				forms.On("Submit", mock.Anything, testFormID).Return(nil, tt.err)
			}

			w, env := do(newTestRouter(NewFormHandler(forms, zerolog.Nop())), http.MethodPost, "/api/v1/forms/current/submit", "")

			assert.Equal(t, tt.status, w.Code)
			if tt.code == "" {
				assert.Nil(t, env.Error)
			} else {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				assert.Equal(t, tt.message, env.Error.Message)
			}

			if tt.result != nil {
				data := env.Data.(map[string]interface{})
				n := data["notification"].(map[string]interface{})
				assert.Equal(t, tt.result.Notification.Title, n["title"])
				values := data["values"].(map[string]interface{})
				assert.Equal(t, tt.result.Values["q1"], values["q1"])
				assert.Equal(t, tt.result.ResetFailed, data["reset_failed"] == true)
			}
		})
	}
}

func TestPageHandler_RendersDefinition(t *testing.T) {
	tmpl, err := web.Templates()
	require.NoError(t, err)

	def := definition.Builtin()
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", NewPageHandler(def).Survey)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>Medical Survey Form</title>")
	for _, key := range def.Keys() {
		assert.Contains(t, body, `name="`+key+`"`)
	}
	assert.Contains(t, body, `type="tel"`)
	assert.Contains(t, body, `<form id="survey" novalidate>`, "blank fields reach the server's group messages")
	assert.Contains(t, body, `var transportFailed = "An error occurred. Please try again.";`)
}

func TestPageHandler_TransportFailureTextFollowsDefinition(t *testing.T) {
	tmpl, err := web.Templates()
	require.NoError(t, err)

	def := definition.Builtin()
	def.Messages.TransportFailed = "Network down & retry later"

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", NewPageHandler(def).Survey)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	assert.Contains(t, body, `var transportFailed = "Network down \u0026 retry later";`)
	assert.NotContains(t, body, "Failed to submit form")
}

func TestPageHandler_RendersChoiceFields(t *testing.T) {
	tmpl, err := web.Templates()
	require.NoError(t, err)

	def, err := definition.Load("../definition/testdata/mcq.yaml", "")
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", NewPageHandler(def).Survey)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	assert.Contains(t, body, `type="radio" name="q1" value="Dihydropyridines"`)
	assert.Contains(t, body, `<select id="specialty"`)
}
