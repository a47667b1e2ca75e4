// Package sheets delivers survey submissions to the spreadsheet that
// collects them, either through the remote web app endpoint or straight
// into a local workbook.
package sheets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/model"
)

// RejectionError is returned when the endpoint answers with a non-2xx status.
type RejectionError struct {
	StatusCode int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("endpoint responded with status %d", e.StatusCode)
}

// RemoteSender posts submissions as multipart/form-data to a fixed URL.
type RemoteSender struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// NewRemoteSender creates a RemoteSender. A nil client means http.DefaultClient.
func NewRemoteSender(endpoint string, client *http.Client, log zerolog.Logger) *RemoteSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSender{
		endpoint: endpoint,
		client:   client,
		log:      log.With().Str("component", "remote_sender").Logger(),
	}
}

// Endpoint returns the URL submissions are posted to.
func (s *RemoteSender) Endpoint() string { return s.endpoint }

// Send posts one part per field, in order, empty values included. Only the
// status code of the response is inspected.
func (s *RemoteSender) Send(ctx context.Context, fields []model.Pair) error {
	body, contentType, err := EncodeMultipart(fields)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	s.log.Debug().
		Int("status", resp.StatusCode).
		Int("fields", len(fields)).
		Msg("Submission posted")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectionError{StatusCode: resp.StatusCode}
	}
	return nil
}

// EncodeMultipart renders fields as a multipart/form-data body and returns
// it with the matching Content-Type header value.
func EncodeMultipart(fields []model.Pair) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, f := range fields {
		if err := mw.WriteField(f.Key, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, mw.FormDataContentType(), nil
}
