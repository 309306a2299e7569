// Command genmock writes deterministic station and yield fixtures for local
// runs and load testing. Output includes sentinel readings, short lines and
// repeated dates so that every ingestion path is exercised.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir wx_data -yield-out yld_data/US_corn_grain_yield.txt \
//	  -stations 10 -start 1985-01-01 -days 3650
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

type options struct {
	outDir    string
	yieldOut  string
	stations  int
	start     time.Time
	days      int
	seed      int64
	missing   float64
	duplicate float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "wx_data", "directory for <station>.txt files")
	yieldOut := flag.String("yield-out", "", "path for the yield file; skipped when empty")
	stations := flag.Int("stations", 5, "number of stations")
	start := flag.String("start", "1985-01-01", "first observation date")
	days := flag.Int("days", 365, "days per station")
	seed := flag.Int64("seed", 1, "random seed")
	missing := flag.Float64("missing", 0.02, "probability of a sentinel reading")
	duplicate := flag.Float64("duplicate", 0.01, "probability of repeating a date with different values")
	flag.Parse()

	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *stations <= 0 || *days <= 0 {
		return fmt.Errorf("-stations and -days must be positive")
	}

	opts := options{
		outDir:    *outDir,
		yieldOut:  *yieldOut,
		stations:  *stations,
		start:     startDate,
		days:      *days,
		seed:      *seed,
		missing:   *missing,
		duplicate: *duplicate,
	}
	return generate(opts)
}

func generate(opts options) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(opts.seed)) //nolint:gosec // fixtures only

	for i := 0; i < opts.stations; i++ {
		station := fmt.Sprintf("USC%08d", 110000+i)
		path := filepath.Join(opts.outDir, station+".txt")
		n, err := writeStation(path, rng, opts)
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("%s: %d lines", station, n)
	}

	if opts.yieldOut == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.yieldOut), 0o755); err != nil {
		return err
	}
	return writeYield(opts.yieldOut, rng, opts)
}

func writeStation(path string, rng *rand.Rand, opts options) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	lines := 0
	for d := 0; d < opts.days; d++ {
		date := opts.start.AddDate(0, 0, d)
		repeats := 1
		if rng.Float64() < opts.duplicate {
			repeats = 2
		}
		for r := 0; r < repeats; r++ {
			maxT, minT, precip := reading(rng, date, opts.missing)
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", date.Format(domain.DateLayout), maxT, minT, precip)
			lines++
		}
		if rng.Float64() < opts.duplicate {
			// Wrong token count; ingestion skips it.
			fmt.Fprintf(w, "%s\t%d\n", date.Format(domain.DateLayout), domain.MissingValue)
			lines++
		}
	}
	if err := w.Flush(); err != nil {
		return lines, err
	}
	return lines, f.Close()
}

// reading returns tenths of a degree and tenths of a millimetre with a rough
// seasonal cycle.
func reading(rng *rand.Rand, date time.Time, missing float64) (maxT, minT, precip int64) {
	season := float64(date.YearDay()) / 365.0
	base := -50 + 300*season*(1-season)*4
	maxT = int64(base + 60 + rng.NormFloat64()*40)
	minT = maxT - int64(50+rng.Intn(120))
	precip = 0
	if rng.Float64() < 0.3 {
		precip = int64(rng.Intn(400))
	}
	sentinel := func(v int64) int64 {
		if rng.Float64() < missing {
			return domain.MissingValue
		}
		return v
	}
	return sentinel(maxT), sentinel(minT), sentinel(precip)
}

func writeYield(path string, rng *rand.Rand, opts options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	first := opts.start.Year()
	last := opts.start.AddDate(0, 0, opts.days-1).Year()
	for y := first; y <= last; y++ {
		fmt.Fprintf(w, "%d\t%d\n", y, 200000+rng.Intn(150000))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Printf("yield: %d years", last-first+1)
	return f.Close()
}
