package storage

// Schema DDL. Every statement is idempotent so Open can apply it on each start.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS weather_stations (
    station_id TEXT PRIMARY KEY
)`,
	`CREATE TABLE IF NOT EXISTS ingestion_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dataset TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    processed_count INTEGER NOT NULL DEFAULT 0,
    inserted_raw_count INTEGER NOT NULL DEFAULT 0,
    upserted_curated_count INTEGER NOT NULL DEFAULT 0,
    conflicts_count INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS ingestion_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingestion_run_id INTEGER NOT NULL REFERENCES ingestion_runs(id),
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ix_ingestion_events_run ON ingestion_events(ingestion_run_id)`,
	`CREATE TABLE IF NOT EXISTS weather_records_raw (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id TEXT NOT NULL REFERENCES weather_stations(station_id),
    date DATE NOT NULL,
    max_temp_tenths_c INTEGER,
    min_temp_tenths_c INTEGER,
    precip_tenths_mm INTEGER,
    source_file TEXT NOT NULL,
    source_line INTEGER NOT NULL,
    ingested_at TIMESTAMP NOT NULL,
    ingestion_run_id INTEGER NOT NULL REFERENCES ingestion_runs(id)
)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_raw_station_date ON weather_records_raw(station_id, date)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_raw_run ON weather_records_raw(ingestion_run_id)`,
	`CREATE TABLE IF NOT EXISTS weather_records (
    station_id TEXT NOT NULL REFERENCES weather_stations(station_id),
    date DATE NOT NULL,
    max_temp_tenths_c INTEGER,
    min_temp_tenths_c INTEGER,
    precip_tenths_mm INTEGER,
    max_temp_raw_id INTEGER,
    min_temp_raw_id INTEGER,
    precip_raw_id INTEGER,
    PRIMARY KEY (station_id, date)
)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_records_date ON weather_records(date)`,
	`CREATE TABLE IF NOT EXISTS weather_conflicts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingestion_run_id INTEGER NOT NULL REFERENCES ingestion_runs(id),
    station_id TEXT NOT NULL,
    date DATE NOT NULL,
    field TEXT NOT NULL,
    existing_value INTEGER,
    incoming_value INTEGER,
    existing_raw_id INTEGER,
    incoming_raw_id INTEGER,
    source_file TEXT NOT NULL,
    source_line INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_conflicts_run ON weather_conflicts(ingestion_run_id)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_conflicts_station_date ON weather_conflicts(station_id, date)`,
	`CREATE TABLE IF NOT EXISTS weather_stats (
    station_id TEXT NOT NULL REFERENCES weather_stations(station_id),
    year INTEGER NOT NULL,
    avg_max_temp_c REAL,
    avg_min_temp_c REAL,
    total_precip_cm REAL,
    PRIMARY KEY (station_id, year)
)`,
	`CREATE TABLE IF NOT EXISTS crop_yield (
    year INTEGER PRIMARY KEY,
    yield_value INTEGER NOT NULL
)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS weather_stations (
    station_id TEXT PRIMARY KEY
)`,
	`CREATE TABLE IF NOT EXISTS ingestion_runs (
    id BIGSERIAL PRIMARY KEY,
    dataset TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ,
    processed_count BIGINT NOT NULL DEFAULT 0,
    inserted_raw_count BIGINT NOT NULL DEFAULT 0,
    upserted_curated_count BIGINT NOT NULL DEFAULT 0,
    conflicts_count BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS ingestion_events (
    id BIGSERIAL PRIMARY KEY,
    ingestion_run_id BIGINT NOT NULL REFERENCES ingestion_runs(id),
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ix_ingestion_events_run ON ingestion_events(ingestion_run_id)`,
	`CREATE TABLE IF NOT EXISTS weather_records_raw (
    id BIGSERIAL PRIMARY KEY,
    station_id TEXT NOT NULL REFERENCES weather_stations(station_id),
    date DATE NOT NULL,
    max_temp_tenths_c INTEGER,
    min_temp_tenths_c INTEGER,
    precip_tenths_mm INTEGER,
    source_file TEXT NOT NULL,
    source_line INTEGER NOT NULL,
    ingested_at TIMESTAMPTZ NOT NULL,
    ingestion_run_id BIGINT NOT NULL REFERENCES ingestion_runs(id)
)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_raw_station_date ON weather_records_raw(station_id, date)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_raw_run ON weather_records_raw(ingestion_run_id)`,
	`CREATE TABLE IF NOT EXISTS weather_records (
    station_id TEXT NOT NULL REFERENCES weather_stations(station_id),
    date DATE NOT NULL,
    max_temp_tenths_c INTEGER,
    min_temp_tenths_c INTEGER,
    precip_tenths_mm INTEGER,
    max_temp_raw_id BIGINT,
    min_temp_raw_id BIGINT,
    precip_raw_id BIGINT,
    PRIMARY KEY (station_id, date)
)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_records_date ON weather_records(date)`,
	`CREATE TABLE IF NOT EXISTS weather_conflicts (
    id BIGSERIAL PRIMARY KEY,
    ingestion_run_id BIGINT NOT NULL REFERENCES ingestion_runs(id),
    station_id TEXT NOT NULL,
    date DATE NOT NULL,
    field TEXT NOT NULL,
    existing_value INTEGER,
    incoming_value INTEGER,
    existing_raw_id BIGINT,
    incoming_raw_id BIGINT,
    source_file TEXT NOT NULL,
    source_line INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_conflicts_run ON weather_conflicts(ingestion_run_id)`,
	`CREATE INDEX IF NOT EXISTS ix_weather_conflicts_station_date ON weather_conflicts(station_id, date)`,
	`CREATE TABLE IF NOT EXISTS weather_stats (
    station_id TEXT NOT NULL REFERENCES weather_stations(station_id),
    year INTEGER NOT NULL,
    avg_max_temp_c DOUBLE PRECISION,
    avg_min_temp_c DOUBLE PRECISION,
    total_precip_cm DOUBLE PRECISION,
    PRIMARY KEY (station_id, year)
)`,
	`CREATE TABLE IF NOT EXISTS crop_yield (
    year INTEGER PRIMARY KEY,
    yield_value BIGINT NOT NULL
)`,
}
