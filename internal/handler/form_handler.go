package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/middleware"
	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/repository"
	"github.com/stemsi/medsurvey/internal/response"
	"github.com/stemsi/medsurvey/internal/service"
	"github.com/stemsi/medsurvey/internal/survey"
	"github.com/stemsi/medsurvey/internal/validator"
)

// FormService is the part of service.FormService the HTTP layer needs.
type FormService interface {
	Definition() *model.Definition
	Open(ctx context.Context) (*service.FormView, error)
	Get(ctx context.Context, formID string) (*service.FormView, error)
	UpdateText(ctx context.Context, formID, key, value string) (*service.FormView, error)
	SelectChoice(ctx context.Context, formID, key, value string) (*service.FormView, error)
	Submit(ctx context.Context, formID string) (*service.SubmitResult, error)
}

// MaxFieldValueLength is the longest value, in characters, a field accepts.
// It matches the max rule on FieldValueRequest.
const MaxFieldValueLength = 2000

// FieldValueRequest carries one field update. An empty value is accepted.
type FieldValueRequest struct {
	Value *string `json:"value" binding:"required,max=2000"`
}

// FormHandler handles form instance endpoints.
type FormHandler struct {
	forms FormService
	log   zerolog.Logger
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(forms FormService, log zerolog.Logger) *FormHandler {
	return &FormHandler{
		forms: forms,
		log:   log.With().Str("component", "form_handler").Logger(),
	}
}

// GetDefinition godoc
// GET /api/v1/definition
func (h *FormHandler) GetDefinition(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"definition": h.forms.Definition()})
}

// OpenForm godoc
// POST /api/v1/forms
// Opens an empty form instance and returns its token.
func (h *FormHandler) OpenForm(c *gin.Context) {
	view, err := h.forms.Open(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Open form failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// GetForm godoc
// GET /api/v1/forms/current
func (h *FormHandler) GetForm(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.forms.Get(c.Request.Context(), claims.FormID)
	if err != nil {
		writeFormError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// UpdateText godoc
// PUT /api/v1/forms/current/fields/:key
func (h *FormHandler) UpdateText(c *gin.Context) {
	h.updateField(c, h.forms.UpdateText)
}

// SelectChoice godoc
// PUT /api/v1/forms/current/choices/:key
func (h *FormHandler) SelectChoice(c *gin.Context) {
	h.updateField(c, h.forms.SelectChoice)
}

func (h *FormHandler) updateField(c *gin.Context, apply func(ctx context.Context, formID, key, value string) (*service.FormView, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req FieldValueRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := apply(c.Request.Context(), claims.FormID, c.Param("key"), *req.Value)
	if err != nil {
		writeFormError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Submit godoc
// POST /api/v1/forms/current/submit
// Runs the submit lifecycle. Failed submissions still carry the
// notification and the preserved values in data.
func (h *FormHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	result, err := h.forms.Submit(c.Request.Context(), claims.FormID)
	if err == nil {
		response.Success(c, http.StatusOK, result)
		return
	}

	var ve *survey.ValidationError
	switch {
	case errors.As(err, &ve):
		response.FailWithData(c, http.StatusUnprocessableEntity, response.ErrIncompleteForm, ve.Message, result)
	case errors.Is(err, survey.ErrRejected):
		response.FailWithData(c, http.StatusBadGateway, response.ErrSubmissionRejected, result.Notification.Title, result)
	case errors.Is(err, survey.ErrTransport):
		response.FailWithData(c, http.StatusBadGateway, response.ErrSubmissionFailed, result.Notification.Title, result)
	case errors.Is(err, survey.ErrSubmitInProgress):
		response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
	case errors.Is(err, repository.ErrFormNotFound):
		response.Fail(c, http.StatusGone, response.ErrFormExpired)
	default:
		h.log.Error().Err(err).Str("form_id", claims.FormID).Msg("Submit failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func writeFormError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := formErrorCode(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Form request failed")
	}
	response.Fail(c, status, code)
}

// formErrorCode maps a field update error to its status and error code.
func formErrorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, survey.ErrUnknownField):
		return http.StatusNotFound, response.ErrUnknownField
	case errors.Is(err, survey.ErrUnknownOption):
		return http.StatusUnprocessableEntity, response.ErrUnknownOption
	case errors.Is(err, survey.ErrChoiceField), errors.Is(err, survey.ErrNotChoiceField):
		return http.StatusUnprocessableEntity, response.ErrFieldKind
	case errors.Is(err, repository.ErrFormNotFound):
		return http.StatusGone, response.ErrFormExpired
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
