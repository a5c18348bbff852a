package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/aevon-lab/statenames/internal/core/storage"
)

// marshalRecordJSON renders a state record as the JSON document stored in the
// record column.
func marshalRecordJSON(record *storage.StateRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state record: %w", err)
	}
	return data, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecordRow scans a database row into a StateRecord.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanRecordRow(row scanner) (*storage.StateRecord, error) {
	var recordJSON []byte

	if err := row.Scan(&recordJSON); err != nil {
		return nil, fmt.Errorf("failed to scan state record row: %w", err)
	}

	var record storage.StateRecord
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state record: %w", err)
	}

	return &record, nil
}
