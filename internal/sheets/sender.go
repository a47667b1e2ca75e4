package sheets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/model"
)

// Sender is implemented by RemoteSender and XLSXSender.
type Sender interface {
	Send(ctx context.Context, fields []model.Pair) error
}

// New builds the sender selected by sink.
func New(sink, endpoint, xlsxPath string, timeout time.Duration, log zerolog.Logger) (Sender, error) {
	switch sink {
	case config.SinkRemote, "":
		var client *http.Client
		if timeout > 0 {
			client = &http.Client{Timeout: timeout}
		}
		return NewRemoteSender(endpoint, client, log), nil
	case config.SinkXLSX:
		return NewXLSXSender(xlsxPath, log), nil
	default:
		return nil, fmt.Errorf("unknown survey sink %q", sink)
	}
}
