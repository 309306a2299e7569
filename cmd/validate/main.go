// Command validate performs a dry run over a weather data directory and a
// yield file. Every line goes through the same parser the pipeline uses and
// nothing is written to a database. It prints a per-file report and exits
// non-zero when any line would abort an ingestion run.
//
// Usage:
//
//	go run ./cmd/validate -data-dir wx_data -yield-file yld_data/US_corn_grain_yield.txt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

// fileReport tallies one input file.
type fileReport struct {
	name      string
	lines     int
	parsed    int
	skipped   int
	sentinels int
	dupDates  int
	errors    []string
}

func (r *fileReport) errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *fileReport) passed() bool { return len(r.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory containing <station>.txt files")
	yieldFile := flag.String("yield-file", "", "path to the crop yield file")
	flag.Parse()

	if *dataDir == "" && *yieldFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, *dataDir, *yieldFile))
}

func run(out io.Writer, dataDir, yieldFile string) int {
	var reports []*fileReport

	if dataDir != "" {
		files, err := filepath.Glob(filepath.Join(dataDir, "*.txt"))
		if err != nil {
			fmt.Fprintf(out, "FATAL: %v\n", err)
			return 1
		}
		sort.Strings(files)
		for _, path := range files {
			reports = append(reports, checkStationFile(path))
		}
	}
	if yieldFile != "" {
		reports = append(reports, checkYieldFile(yieldFile))
	}

	failed := 0
	for _, r := range reports {
		status := "PASS"
		if !r.passed() {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "[%s] %s lines=%d parsed=%d skipped=%d sentinels=%d repeated_dates=%d\n",
			status, r.name, r.lines, r.parsed, r.skipped, r.sentinels, r.dupDates)
		for _, e := range r.errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
	fmt.Fprintf(out, "%d files checked, %d failed\n", len(reports), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func checkStationFile(path string) *fileReport {
	r := &fileReport{name: filepath.Base(path)}
	seen := make(map[string]bool)
	scanLines(r, path, func(lineNo int, text string) {
		line, ok, err := domain.ParseWeatherLine(text)
		switch {
		case err != nil:
			r.errorf("line %d: %v", lineNo, err)
		case !ok:
			r.skipped++
		default:
			r.parsed++
			for _, v := range []*int64{line.MaxTempTenthsC, line.MinTempTenthsC, line.PrecipTenthsMM} {
				if v == nil {
					r.sentinels++
				}
			}
			key := line.Date.Format(domain.DateLayout)
			if seen[key] {
				r.dupDates++
			}
			seen[key] = true
		}
	})
	return r
}

func checkYieldFile(path string) *fileReport {
	r := &fileReport{name: filepath.Base(path)}
	seen := make(map[int]bool)
	scanLines(r, path, func(lineNo int, text string) {
		row, ok, err := domain.ParseYieldLine(text)
		switch {
		case err != nil:
			r.errorf("line %d: %v", lineNo, err)
		case !ok:
			r.skipped++
		default:
			r.parsed++
			if seen[row.Year] {
				r.dupDates++
			}
			seen[row.Year] = true
		}
	})
	return r
}

func scanLines(r *fileReport, path string, fn func(lineNo int, text string)) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		r.errorf("%v", domain.ErrSourceNotFound)
		return
	}
	if err != nil {
		r.errorf("open: %v", err)
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		r.lines++
		fn(lineNo, sc.Text())
	}
	if err := sc.Err(); err != nil {
		r.errorf("read: %v", err)
	}
}
