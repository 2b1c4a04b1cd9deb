package churn

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Ingestion failures are surfaced to the reload caller and never thrown into
// aggregator state; callers can distinguish a missing file from a broken one.
var (
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrDatasetMalformed = errors.New("dataset malformed")
)

// LoadDataset reads a headered CSV into an ordered sequence of field-keyed
// records. Column names are trimmed and lowercased so the feature definitions
// match regardless of header casing. Cell-level problems are not errors here;
// the extractor coerces them leniently.
func LoadDataset(path string) ([]RawRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header in %s", ErrDatasetMalformed, path)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDatasetMalformed, path, err)
	}

	records := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		record := make(RawRecord, len(columns))
		for i, col := range columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// ExtractAll maps every raw record through the feature extractor, preserving
// dataset order.
func ExtractAll(records []RawRecord) []ModelRow {
	rows := make([]ModelRow, len(records))
	for i, record := range records {
		rows[i] = Extract(record, i)
	}
	return rows
}
