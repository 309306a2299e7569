package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jellydator/ttlcache/v3"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/storage"
)

// Reader is the read side of the store used by the API.
type Reader interface {
	ListCurated(ctx context.Context, f storage.CuratedFilter, p storage.Page) ([]domain.CuratedObservation, int64, error)
	ListStats(ctx context.Context, f storage.StatsFilter, p storage.Page) ([]domain.StationYearStats, int64, error)
	ListYield(ctx context.Context, f storage.StatsFilter, p storage.Page) ([]domain.CropYield, int64, error)
	ListAnnualSummary(ctx context.Context, f storage.StatsFilter, p storage.Page) ([]domain.AnnualSummary, int64, error)
	ListEvents(ctx context.Context, f storage.EventFilter, p storage.Page) ([]domain.IngestionEvent, int64, error)
	ListRuns(ctx context.Context, f storage.RunFilter, p storage.Page) ([]domain.IngestionRun, int64, error)
	ListConflicts(ctx context.Context, f storage.ConflictFilter, p storage.Page) ([]domain.Conflict, int64, error)
}

// Paged is the envelope of every list response.
type Paged[T any] struct {
	Data     []T   `json:"data"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// API serves the paginated read endpoints.
type API struct {
	reader      Reader
	pageDefault int
	pageMax     int
	cache       *ttlcache.Cache[string, any]
	logger      *slog.Logger
}

// NewAPI creates an API. A positive cacheTTL caches stats and summary pages,
// which only change when statistics are recomputed.
func NewAPI(reader Reader, pageDefault, pageMax int, cacheTTL time.Duration, logger *slog.Logger) *API {
	a := &API{
		reader:      reader,
		pageDefault: pageDefault,
		pageMax:     pageMax,
		logger:      logger,
	}
	if cacheTTL > 0 {
		a.cache = ttlcache.New(
			ttlcache.WithTTL[string, any](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, any](),
		)
	}
	return a
}

// Start runs the cache's expiry loop until Stop. It is a no-op without a cache.
func (a *API) Start() {
	if a.cache != nil {
		go a.cache.Start()
	}
}

// Stop ends the cache's expiry loop.
func (a *API) Stop() {
	if a.cache != nil {
		a.cache.Stop()
	}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/weather", a.serve(a.listWeather))
	mux.HandleFunc("GET /api/weather/stats", a.serve(a.cached(a.listStats)))
	mux.HandleFunc("GET /api/weather/conflicts", a.serve(a.listConflicts))
	mux.HandleFunc("GET /api/yield", a.serve(a.listYield))
	mux.HandleFunc("GET /api/summary/annual_yield_and_weather", a.serve(a.cached(a.listSummary)))
	mux.HandleFunc("GET /api/ingestion/events", a.serve(a.listEvents))
	mux.HandleFunc("GET /api/ingestion/runs", a.serve(a.listRuns))
}

// listFunc produces a response body or an error for one request.
type listFunc func(r *http.Request) (any, error)

func (a *API) serve(fn listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fn(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, body)
	}
}

// cached wraps fn with the response cache, keyed on path and raw query.
func (a *API) cached(fn listFunc) listFunc {
	if a.cache == nil {
		return fn
	}
	return func(r *http.Request) (any, error) {
		key := r.URL.Path + "?" + r.URL.Query().Encode()
		if item := a.cache.Get(key); item != nil {
			return item.Value(), nil
		}
		body, err := fn(r)
		if err != nil {
			return nil, err
		}
		a.cache.Set(key, body, ttlcache.DefaultTTL)
		return body, nil
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": reqErr.msg})
		return
	}
	a.logger.Error("api request failed", "path", r.URL.Path, "error", err)
	sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

type weatherOut struct {
	StationID string   `json:"station_id"`
	Date      string   `json:"date"`
	MaxTempC  *float64 `json:"max_temp_c"`
	MinTempC  *float64 `json:"min_temp_c"`
	PrecipCM  *float64 `json:"precip_cm"`
}

func (a *API) listWeather(r *http.Request) (any, error) {
	q := r.URL.Query()
	var (
		f   storage.CuratedFilter
		err error
	)
	f.StationID = q.Get("station_id")
	if f.Date, err = queryDate(q, "date"); err != nil {
		return nil, err
	}
	if f.Start, err = queryDate(q, "start_date"); err != nil {
		return nil, err
	}
	if f.End, err = queryDate(q, "end_date"); err != nil {
		return nil, err
	}
	if f.Date != nil && (f.Start != nil || f.End != nil) {
		return nil, badRequest("use either date or start_date/end_date, not both")
	}
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}

	rows, total, err := a.reader.ListCurated(r.Context(), f, p)
	if err != nil {
		return nil, err
	}
	out := make([]weatherOut, 0, len(rows))
	for _, c := range rows {
		out = append(out, weatherOut{
			StationID: c.StationID,
			Date:      c.Date.Format(time.DateOnly),
			MaxTempC:  domain.TenthsToCelsius(c.MaxTempTenthsC),
			MinTempC:  domain.TenthsToCelsius(c.MinTempTenthsC),
			PrecipCM:  domain.TenthsMMToCM(c.PrecipTenthsMM),
		})
	}
	return paged(out, p, total), nil
}

func (a *API) listStats(r *http.Request) (any, error) {
	q := r.URL.Query()
	f, err := yearFilter(q)
	if err != nil {
		return nil, err
	}
	f.StationID = q.Get("station_id")
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}
	rows, total, err := a.reader.ListStats(r.Context(), f, p)
	if err != nil {
		return nil, err
	}
	return paged(rows, p, total), nil
}

func (a *API) listYield(r *http.Request) (any, error) {
	q := r.URL.Query()
	f, err := yearFilter(q)
	if err != nil {
		return nil, err
	}
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}
	rows, total, err := a.reader.ListYield(r.Context(), f, p)
	if err != nil {
		return nil, err
	}
	return paged(rows, p, total), nil
}

func (a *API) listSummary(r *http.Request) (any, error) {
	q := r.URL.Query()
	f, err := yearFilter(q)
	if err != nil {
		return nil, err
	}
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}
	rows, total, err := a.reader.ListAnnualSummary(r.Context(), f, p)
	if err != nil {
		return nil, err
	}
	return paged(rows, p, total), nil
}

func (a *API) listEvents(r *http.Request) (any, error) {
	q := r.URL.Query()
	runID, err := queryRunID(q)
	if err != nil {
		return nil, err
	}
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}
	rows, total, err := a.reader.ListEvents(r.Context(), storage.EventFilter{RunID: runID, Level: q.Get("level")}, p)
	if err != nil {
		return nil, err
	}
	return paged(rows, p, total), nil
}

type runOut struct {
	domain.IngestionRun
	Status string `json:"status"`
}

func (a *API) listRuns(r *http.Request) (any, error) {
	q := r.URL.Query()
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}
	rows, total, err := a.reader.ListRuns(r.Context(), storage.RunFilter{Dataset: q.Get("dataset")}, p)
	if err != nil {
		return nil, err
	}
	out := make([]runOut, 0, len(rows))
	for _, run := range rows {
		out = append(out, runOut{IngestionRun: run, Status: run.Status()})
	}
	return paged(out, p, total), nil
}

type conflictOut struct {
	domain.Conflict
	Date string `json:"date"`
}

func (a *API) listConflicts(r *http.Request) (any, error) {
	q := r.URL.Query()
	runID, err := queryRunID(q)
	if err != nil {
		return nil, err
	}
	f := storage.ConflictFilter{StationID: q.Get("station_id"), RunID: runID}
	if v := q.Get("field"); v != "" {
		f.Field = domain.Field(v)
		if !f.Field.Valid() {
			return nil, badRequest("unknown field %q", v)
		}
	}
	p, err := page(q, a.pageDefault, a.pageMax)
	if err != nil {
		return nil, err
	}
	rows, total, err := a.reader.ListConflicts(r.Context(), f, p)
	if err != nil {
		return nil, err
	}
	out := make([]conflictOut, 0, len(rows))
	for _, c := range rows {
		out = append(out, conflictOut{Conflict: c, Date: c.Date.Format(time.DateOnly)})
	}
	return paged(out, p, total), nil
}

func queryRunID(q url.Values) (int64, error) {
	v := q.Get("ingestion_run_id")
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("ingestion_run_id must be a positive integer")
	}
	return id, nil
}

func paged[T any](data []T, p storage.Page, total int64) Paged[T] {
	return Paged[T]{Data: data, Page: p.Number, PageSize: p.Size, Total: total}
}
