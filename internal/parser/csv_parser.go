package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseTraceCSV reads a trace saved as CSV. Two layouts are accepted:
// one amplitude per row, or "time,amplitude" rows. In the second layout the
// sampling interval is taken from the time column; otherwise it is left at 0
// for the caller to set. Header and unparsable rows are skipped and recorded
// in ParseErrors.
func ParseTraceCSV(filepath string) (*Trace, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	trace, err := readTraceCSV(file)
	if err != nil {
		return nil, err
	}
	trace.Source = filepath
	return trace, nil
}

func readTraceCSV(r io.Reader) (*Trace, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.FieldsPerRecord = -1 // headers may have a different width

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV data: %w", err)
	}

	trace := NewTrace(make([]float64, 0, len(allRows)), 0, "")
	var times []float64
	columns := 0

	for rowIdx, row := range allRows {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) > 2 {
			trace.ParseErrors = append(trace.ParseErrors, fmt.Sprintf("Row %d: expected 1 or 2 columns, found %d. Skipped.", rowIdx+1, len(row)))
			continue
		}

		values := make([]float64, 0, 2)
		parseErr := false
		for _, item := range row {
			val, err := strconv.ParseFloat(strings.TrimSpace(item), 64)
			if err != nil {
				parseErr = true
				break
			}
			values = append(values, val)
		}
		if parseErr {
			trace.ParseErrors = append(trace.ParseErrors, fmt.Sprintf("Row %d: non-numeric value %q. Skipped.", rowIdx+1, strings.Join(row, ",")))
			continue
		}

		if columns == 0 {
			columns = len(values)
		} else if columns != len(values) {
			trace.ParseErrors = append(trace.ParseErrors, fmt.Sprintf("Row %d: column count changed from %d to %d. Skipped.", rowIdx+1, columns, len(values)))
			continue
		}

		if columns == 2 {
			times = append(times, values[0])
			trace.Samples = append(trace.Samples, values[1])
		} else {
			trace.Samples = append(trace.Samples, values[0])
		}
	}

	if len(trace.Samples) == 0 {
		return nil, fmt.Errorf("no numeric samples found in CSV data")
	}

	if len(times) > 1 {
		trace.SamplingInterval = (times[len(times)-1] - times[0]) / float64(len(times)-1)
		if trace.SamplingInterval <= 0 {
			trace.ParseErrors = append(trace.ParseErrors, "Warning: time column is not increasing; sampling interval left unset.")
			trace.SamplingInterval = 0
		}
	}
	return trace, nil
}
