package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/model"
	"github.com/xuri/excelize/v2"
)

// ResponsesSheet is the worksheet rows are appended to.
const ResponsesSheet = "Responses"

// XLSXSender appends each submission as a row of a local workbook, the way
// the spreadsheet behind the remote endpoint does. Used for offline runs.
type XLSXSender struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
	log  zerolog.Logger
}

// NewXLSXSender creates an XLSXSender writing to path.
func NewXLSXSender(path string, log zerolog.Logger) *XLSXSender {
	return &XLSXSender{
		path: path,
		now:  time.Now,
		log:  log.With().Str("component", "xlsx_sender").Logger(),
	}
}

// Send appends one row: a timestamp followed by the field values. The header
// row is written from the field keys when the sheet is empty.
func (s *XLSXSender) Send(ctx context.Context, fields []model.Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(ResponsesSheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	next := len(rows) + 1
	if len(rows) == 0 {
		header := make([]interface{}, 0, len(fields)+1)
		header = append(header, "submitted_at")
		for _, p := range fields {
			header = append(header, p.Key)
		}
		if err := f.SetSheetRow(ResponsesSheet, "A1", &header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		next = 2
	}

	row := make([]interface{}, 0, len(fields)+1)
	row = append(row, s.now().UTC().Format(time.RFC3339))
	for _, p := range fields {
		row = append(row, p.Value)
	}
	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(ResponsesSheet, cell, &row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	s.log.Debug().Int("row", next).Str("path", s.path).Msg("Submission appended")
	return nil
}

func (s *XLSXSender) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", ResponsesSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet: %w", err)
		}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	idx, err := f.GetSheetIndex(ResponsesSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("find sheet: %w", err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(ResponsesSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet: %w", err)
		}
	}
	return f, nil
}
