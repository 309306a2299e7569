package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

const maxLineBytes = 1 << 20

// scanStationFile parses every line of path and calls emit for each line that
// has the expected token count. Line numbers are 1-based and count skipped
// lines. A malformed field stops the scan with an error naming file and line.
func scanStationFile(ctx context.Context, path string, emit func(lineNo int, line domain.ParsedLine) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		parsed, ok, err := domain.ParseWeatherLine(sc.Text())
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if !ok {
			continue
		}
		if err := emit(lineNo, parsed); err != nil {
			return err
		}
		if lineNo%10000 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// toRaw ties a parsed line to its station, source position and run.
func toRaw(runID int64, stationID, sourceFile string, lineNo int, line domain.ParsedLine, ingestedAt time.Time) domain.RawObservation {
	return domain.RawObservation{
		StationID:  stationID,
		Date:       line.Date,
		Reading:    line.Reading,
		SourceFile: sourceFile,
		SourceLine: lineNo,
		IngestedAt: ingestedAt,
		RunID:      runID,
	}
}
