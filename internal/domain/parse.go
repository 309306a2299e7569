package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MissingValue is the source sentinel for "no observation".
const MissingValue = -9999

// DateLayout is the compact date format used by weather files.
const DateLayout = "20060102"

var (
	// ErrMalformedField marks a line whose tokens split correctly but do not parse.
	// It aborts the whole run.
	ErrMalformedField = errors.New("malformed field")

	// ErrSourceNotFound marks a missing input directory or file.
	ErrSourceNotFound = errors.New("source not found")

	// ErrRunInProgress is returned when another run holds the dataset lock.
	ErrRunInProgress = errors.New("ingestion run already in progress")
)

// ParseWeatherLine parses one weather line. ok is false when the line does not
// have exactly four tokens; such lines are skipped by callers. A non-nil error
// wraps ErrMalformedField.
func ParseWeatherLine(line string) (parsed ParsedLine, ok bool, err error) {
	parts := strings.Fields(line)
	if len(parts) != 4 {
		return ParsedLine{}, false, nil
	}

	date, err := time.Parse(DateLayout, parts[0])
	if err != nil {
		return ParsedLine{}, false, fmt.Errorf("%w: date %q", ErrMalformedField, parts[0])
	}

	values := make([]*int64, 3)
	for i, tok := range parts[1:] {
		v, err := parseReading(tok)
		if err != nil {
			return ParsedLine{}, false, err
		}
		values[i] = v
	}

	return ParsedLine{
		Date: date,
		Reading: Reading{
			MaxTempTenthsC: values[0],
			MinTempTenthsC: values[1],
			PrecipTenthsMM: values[2],
		},
	}, true, nil
}

// parseReading converts a reading token, mapping the sentinel to nil.
func parseReading(tok string) (*int64, error) {
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: value %q", ErrMalformedField, tok)
	}
	if v == MissingValue {
		return nil, nil
	}
	return &v, nil
}

// ParseYieldLine parses "<year> <yield>". ok is false when the line does not have
// exactly two tokens.
func ParseYieldLine(line string) (y CropYield, ok bool, err error) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return CropYield{}, false, nil
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return CropYield{}, false, fmt.Errorf("%w: year %q", ErrMalformedField, parts[0])
	}
	value, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return CropYield{}, false, fmt.Errorf("%w: yield %q", ErrMalformedField, parts[1])
	}
	return CropYield{Year: year, YieldValue: value}, true, nil
}

// StationIDFromPath derives the station identifier from a file name by dropping
// the directory and extension.
func StationIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
