package intake

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// StreamCSV reads questionnaire rows from a CSV export and sends one
// RawIntake per data row. The first row must be the header; column names are
// the record keys understood by FromRecord. Both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan RawIntake, <-chan error) {
	outCh := make(chan RawIntake, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		header, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "intake: read csv header")
			return
		}
		for i, h := range header {
			header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "intake: csv context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "intake: read csv row")
				return
			}

			fields := make(map[string]any, len(header))
			for i, h := range header {
				if i < len(record) {
					fields[h] = record[i]
				}
			}

			select {
			case outCh <- FromRecord(fields):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "intake: csv context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// ReadJSON decodes one questionnaire record from JSON. Both the RawIntake
// field names and the form backend's column names are accepted.
func ReadJSON(r io.Reader) (RawIntake, error) {
	var fields map[string]any
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return RawIntake{}, eris.Wrap(err, "intake: decode json")
	}
	return FromRecord(fields), nil
}
