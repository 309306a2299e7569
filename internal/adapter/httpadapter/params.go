package httpadapter

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-yield-etl/internal/storage"
)

// requestError is a client error reported as 400 with its message.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// queryInt parses an optional integer parameter; absent yields 0.
func queryInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return n, nil
}

// queryDate parses an optional YYYY-MM-DD parameter.
func queryDate(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, badRequest("%s must be a date in YYYY-MM-DD form", key)
	}
	return &d, nil
}

// page resolves page and page_size. page defaults to 1 and is floored at 1;
// page_size defaults to def and is clamped to [1, maxSize].
func page(q url.Values, def, maxSize int) (storage.Page, error) {
	p, err := queryInt(q, "page")
	if err != nil {
		return storage.Page{}, err
	}
	size := def
	if q.Has("page_size") {
		if size, err = queryInt(q, "page_size"); err != nil {
			return storage.Page{}, err
		}
	}
	return storage.Page{Number: max(p, 1), Size: clampPageSize(size, maxSize)}, nil
}

func clampPageSize(size, maxSize int) int {
	if size <= 0 {
		return 1
	}
	return min(size, maxSize)
}

// yearFilter parses year, year_start and year_end, which are mutually exclusive
// between the single year and the range.
func yearFilter(q url.Values) (storage.StatsFilter, error) {
	var (
		f   storage.StatsFilter
		err error
	)
	if f.Year, err = queryInt(q, "year"); err != nil {
		return f, err
	}
	if f.YearStart, err = queryInt(q, "year_start"); err != nil {
		return f, err
	}
	if f.YearEnd, err = queryInt(q, "year_end"); err != nil {
		return f, err
	}
	if f.Year != 0 && (f.YearStart != 0 || f.YearEnd != 0) {
		return f, badRequest("use either year or year_start/year_end, not both")
	}
	return f, nil
}
