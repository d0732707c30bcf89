package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"wedding-rsvp/internal/models"
)

// ErrNoNameColumn is returned when the header has no name column
var ErrNoNameColumn = errors.New(`could not find a "nombre" or "name" column in the CSV header`)

// CSVOptions controls which rows ReadRows keeps
type CSVOptions struct {
	// RequireFlag keeps only rows whose first column is "true"
	RequireFlag bool
}

// ReadRows turns a spreadsheet export into import rows. The name column
// is the first header containing "nombre" or "name"; the plus-one column
// is the first containing "adicionales" or "plus". Blank names are dropped.
// A missing, blank, unparsable or non-positive plus-one count leaves
// PlusOnesAllowed nil so a matched guest keeps the stored value.
func ReadRows(r io.Reader, opts CSVOptions) ([]models.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	nameIdx, plusIdx := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if nameIdx == -1 && (strings.Contains(h, "nombre") || strings.Contains(h, "name")) {
			nameIdx = i
		}
		if plusIdx == -1 && (strings.Contains(h, "adicionales") || strings.Contains(h, "plus")) {
			plusIdx = i
		}
	}
	if nameIdx == -1 {
		return nil, ErrNoNameColumn
	}

	var rows []models.ImportRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		if opts.RequireFlag && !strings.EqualFold(strings.TrimSpace(cell(record, 0)), "true") {
			continue
		}

		name := strings.TrimSpace(cell(record, nameIdx))
		if name == "" {
			continue
		}
		row := models.ImportRow{Name: name}
		if plusIdx != -1 {
			if n, err := strconv.Atoi(strings.TrimSpace(cell(record, plusIdx))); err == nil && n > 0 {
				row.PlusOnesAllowed = &n
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
