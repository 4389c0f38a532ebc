package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shorttrack/shorttrack/internal/db"
	"github.com/shorttrack/shorttrack/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns        int32         `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns        int32         `yaml:"min_conns" mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" mapstructure:"max_conn_idle_time"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
		if poolCfg.MaxConnLifetime > 0 {
			pgxCfg.MaxConnLifetime = poolCfg.MaxConnLifetime
		}
		if poolCfg.MaxConnIdleTime > 0 {
			pgxCfg.MaxConnIdleTime = poolCfg.MaxConnIdleTime
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the COPY-based backup restore).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS countries (
	id         BIGSERIAL PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	flag       TEXT NOT NULL DEFAULT '',
	priority   TEXT NOT NULL DEFAULT 'high',
	url        TEXT NOT NULL DEFAULT '',
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	isin       TEXT,
	country_id BIGINT NOT NULL REFERENCES countries(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, country_id)
);

CREATE TABLE IF NOT EXISTS managers (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	slug       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS short_positions (
	id            BIGSERIAL PRIMARY KEY,
	date          TIMESTAMPTZ NOT NULL,
	change_date   TIMESTAMPTZ,
	company_id    BIGINT NOT NULL REFERENCES companies(id),
	manager_id    BIGINT NOT NULL REFERENCES managers(id),
	country_id    BIGINT NOT NULL REFERENCES countries(id),
	position_size DOUBLE PRECISION NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	source_url    TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_position_date ON short_positions(date);
CREATE INDEX IF NOT EXISTS idx_position_company ON short_positions(company_id);
CREATE INDEX IF NOT EXISTS idx_position_manager ON short_positions(manager_id);
CREATE INDEX IF NOT EXISTS idx_position_country ON short_positions(country_id);
CREATE INDEX IF NOT EXISTS idx_position_active ON short_positions(is_active);
CREATE INDEX IF NOT EXISTS idx_position_date_active ON short_positions(date, is_active);

CREATE TABLE IF NOT EXISTS analytics_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	cache_data TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cache_expires ON analytics_cache(expires_at);

INSERT INTO countries (code, name, flag) VALUES
	('AT', 'Austria', '🇦🇹'),
	('BE', 'Belgium', '🇧🇪'),
	('DE', 'Germany', '🇩🇪'),
	('DK', 'Denmark', '🇩🇰'),
	('ES', 'Spain', '🇪🇸'),
	('FI', 'Finland', '🇫🇮'),
	('FR', 'France', '🇫🇷'),
	('GB', 'United Kingdom', '🇬🇧'),
	('IE', 'Ireland', '🇮🇪'),
	('IT', 'Italy', '🇮🇹'),
	('NL', 'Netherlands', '🇳🇱'),
	('NO', 'Norway', '🇳🇴'),
	('PT', 'Portugal', '🇵🇹'),
	('SE', 'Sweden', '🇸🇪')
ON CONFLICT (code) DO NOTHING;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Reference entities

func (s *PostgresStore) GetCountry(ctx context.Context, id int64) (*model.Country, error) {
	return s.scanCountry(s.pool.QueryRow(ctx,
		`SELECT id, code, name, flag, priority, url, is_active FROM countries WHERE id = $1`, id))
}

func (s *PostgresStore) GetCountryByCode(ctx context.Context, code string) (*model.Country, error) {
	return s.scanCountry(s.pool.QueryRow(ctx,
		`SELECT id, code, name, flag, priority, url, is_active FROM countries WHERE code = $1`,
		strings.ToUpper(code)))
}

func (s *PostgresStore) scanCountry(row pgx.Row) (*model.Country, error) {
	var c model.Country
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Flag, &c.Priority, &c.URL, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "postgres: country")
		}
		return nil, eris.Wrap(err, "postgres: get country")
	}
	return &c, nil
}

func (s *PostgresStore) ListCountries(ctx context.Context) ([]model.Country, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, name, flag, priority, url, is_active FROM countries ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list countries")
	}
	defer rows.Close()

	var countries []model.Country
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Flag, &c.Priority, &c.URL, &c.IsActive); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country")
		}
		countries = append(countries, c)
	}
	return countries, eris.Wrap(rows.Err(), "postgres: list countries iterate")
}

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT c.id, c.name, COALESCE(c.isin, ''), co.id, co.code, co.name, co.flag
		 FROM companies c
		 JOIN countries co ON co.id = c.country_id
		 WHERE c.id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.ISIN, &c.Country.ID, &c.Country.Code, &c.Country.Name, &c.Country.Flag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: company %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get company %d", id)
	}
	return &c, nil
}

func (s *PostgresStore) GetManager(ctx context.Context, id int64) (*model.Manager, error) {
	return s.scanManager(s.pool.QueryRow(ctx,
		`SELECT id, name, slug FROM managers WHERE id = $1`, id))
}

func (s *PostgresStore) GetManagerBySlug(ctx context.Context, slug string) (*model.Manager, error) {
	return s.scanManager(s.pool.QueryRow(ctx,
		`SELECT id, name, slug FROM managers WHERE slug = $1`, slug))
}

func (s *PostgresStore) scanManager(row pgx.Row) (*model.Manager, error) {
	var m model.Manager
	err := row.Scan(&m.ID, &m.Name, &m.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "postgres: manager")
		}
		return nil, eris.Wrap(err, "postgres: get manager")
	}
	return &m, nil
}

// Disclosure reads

// ActivePositions returns the ingestion-flagged active snapshot, with
// display fields joined. It trusts is_active and does not replay
// history; the timeline and ledger paths derive state independently.
func (s *PostgresStore) ActivePositions(ctx context.Context, f SnapshotFilter) ([]model.Position, error) {
	query := `SELECT sp.id, sp.date, sp.position_size, sp.is_active,
	       c.id, c.name, m.id, m.name, m.slug, co.id, co.code, co.name, co.flag
	FROM short_positions sp
	JOIN companies c ON c.id = sp.company_id
	JOIN managers m ON m.id = sp.manager_id
	JOIN countries co ON co.id = sp.country_id
	WHERE sp.is_active = TRUE`
	args := []any{}
	argIdx := 1

	if f.CountryID != nil {
		query += fmt.Sprintf(` AND sp.country_id = $%d`, argIdx)
		args = append(args, *f.CountryID)
		argIdx++
	}
	if f.AsOf != nil {
		query += fmt.Sprintf(` AND sp.date <= $%d`, argIdx)
		args = append(args, *f.AsOf)
		argIdx++
	}
	query += ` ORDER BY sp.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active positions")
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.ID, &p.Date, &p.PositionSize, &p.IsActive,
			&p.CompanyID, &p.CompanyName, &p.ManagerID, &p.ManagerName, &p.ManagerSlug,
			&p.CountryID, &p.CountryCode, &p.CountryName, &p.CountryFlag); err != nil {
			return nil, eris.Wrap(err, "postgres: scan active position")
		}
		positions = append(positions, p)
	}
	return positions, eris.Wrap(rows.Err(), "postgres: active positions iterate")
}

func (s *PostgresStore) CountActivePositions(ctx context.Context, countryID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM short_positions WHERE country_id = $1 AND is_active = TRUE`,
		countryID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count active positions")
}

func (s *PostgresStore) LatestDisclosureDate(ctx context.Context, countryID int64) (*time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(date) FROM short_positions WHERE country_id = $1`,
		countryID,
	).Scan(&latest)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest disclosure date")
	}
	return latest, nil
}

// CompanyTimelineEvents returns every disclosure for a company since
// the given barrier date, ordered by manager then date, ready for
// carry-forward replay.
func (s *PostgresStore) CompanyTimelineEvents(ctx context.Context, companyID int64, since time.Time) ([]model.TimelineEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.name, sp.date, sp.position_size
		 FROM short_positions sp
		 JOIN managers m ON m.id = sp.manager_id
		 WHERE sp.company_id = $1 AND sp.date >= $2
		 ORDER BY m.id, sp.date`,
		companyID, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: timeline events for company %d", companyID)
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		if err := rows.Scan(&e.ManagerName, &e.Date, &e.PositionSize); err != nil {
			return nil, eris.Wrap(err, "postgres: scan timeline event")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: timeline events iterate")
}

// ManagerPositions returns the manager's full disclosure history across
// all companies, newest first within each company. The country join
// goes through the company's home country, matching how positions are
// presented in the ledger.
func (s *PostgresStore) ManagerPositions(ctx context.Context, managerID int64) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sp.id, sp.date, sp.position_size, sp.is_active,
		        c.id, c.name, co.id, co.code, co.name, co.flag
		 FROM short_positions sp
		 JOIN companies c ON c.id = sp.company_id
		 JOIN countries co ON co.id = c.country_id
		 WHERE sp.manager_id = $1
		 ORDER BY c.id, sp.date DESC, sp.id DESC`,
		managerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: positions for manager %d", managerID)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p := model.Position{ManagerID: managerID}
		if err := rows.Scan(&p.ID, &p.Date, &p.PositionSize, &p.IsActive,
			&p.CompanyID, &p.CompanyName, &p.CountryID, &p.CountryCode, &p.CountryName, &p.CountryFlag); err != nil {
			return nil, eris.Wrap(err, "postgres: scan manager position")
		}
		positions = append(positions, p)
	}
	return positions, eris.Wrap(rows.Err(), "postgres: manager positions iterate")
}

// CompanyAggregatesDirect computes per-company rollups with a direct
// join over active disclosures, bypassing the snapshot path. Kept as a
// separate query because the snapshot-based path historically
// mis-ordered results for one jurisdiction.
func (s *PostgresStore) CompanyAggregatesDirect(ctx context.Context, countryID int64) ([]CompanyAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.name, SUM(sp.position_size), AVG(sp.position_size), COUNT(sp.id), MAX(sp.date)
		 FROM companies c
		 JOIN short_positions sp ON sp.company_id = c.id
		 WHERE sp.country_id = $1 AND sp.is_active = TRUE
		 GROUP BY c.id, c.name`,
		countryID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: direct aggregates for country %d", countryID)
	}
	defer rows.Close()

	var aggs []CompanyAggregate
	for rows.Next() {
		var a CompanyAggregate
		if err := rows.Scan(&a.CompanyID, &a.CompanyName, &a.TotalExposure, &a.AverageSize,
			&a.PositionCount, &a.MostRecentPositionDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan direct aggregate")
		}
		aggs = append(aggs, a)
	}
	return aggs, eris.Wrap(rows.Err(), "postgres: direct aggregates iterate")
}

// CompanyTotalsDirect is the as-of counterpart of
// CompanyAggregatesDirect, used for week-over-week deltas.
func (s *PostgresStore) CompanyTotalsDirect(ctx context.Context, countryID int64, asOf time.Time) (map[int64]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, SUM(sp.position_size)
		 FROM companies c
		 JOIN short_positions sp ON sp.company_id = c.id
		 WHERE sp.country_id = $1 AND sp.is_active = TRUE AND sp.date <= $2
		 GROUP BY c.id`,
		countryID, asOf,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: direct totals for country %d", countryID)
	}
	defer rows.Close()

	totals := make(map[int64]float64)
	for rows.Next() {
		var companyID int64
		var total float64
		if err := rows.Scan(&companyID, &total); err != nil {
			return nil, eris.Wrap(err, "postgres: scan direct total")
		}
		totals[companyID] = total
	}
	return totals, eris.Wrap(rows.Err(), "postgres: direct totals iterate")
}

// Global dashboard reads

func (s *PostgresStore) GlobalSummary(ctx context.Context, since time.Time) (*SummaryCounts, error) {
	var sc SummaryCounts
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT country_id), COUNT(DISTINCT company_id), COUNT(DISTINCT manager_id)
		 FROM short_positions WHERE date >= $1 AND is_active = TRUE`,
		since,
	).Scan(&sc.ActivePositions, &sc.Countries, &sc.Companies, &sc.Managers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: global summary")
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT MAX(date) FROM short_positions`,
	).Scan(&sc.LatestDate); err != nil {
		return nil, eris.Wrap(err, "postgres: global summary latest date")
	}
	return &sc, nil
}

func (s *PostgresStore) TopCountriesByActivity(ctx context.Context, since time.Time, limit int) ([]CountryActivity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT co.name, co.flag, COUNT(sp.id), COALESCE(SUM(sp.position_size), 0)
		 FROM countries co
		 JOIN short_positions sp ON sp.country_id = co.id
		 WHERE sp.date >= $1 AND sp.is_active = TRUE
		 GROUP BY co.id, co.name, co.flag
		 ORDER BY COUNT(sp.id) DESC
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top countries")
	}
	defer rows.Close()

	var activity []CountryActivity
	for rows.Next() {
		var a CountryActivity
		if err := rows.Scan(&a.Name, &a.Flag, &a.ActivePositions, &a.TotalExposure); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country activity")
		}
		activity = append(activity, a)
	}
	return activity, eris.Wrap(rows.Err(), "postgres: top countries iterate")
}

func (s *PostgresStore) PositionsTrend(ctx context.Context, since time.Time) ([]TrendPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date::date, COUNT(id), COALESCE(SUM(position_size), 0)
		 FROM short_positions
		 WHERE date >= $1 AND is_active = TRUE
		 GROUP BY date::date
		 ORDER BY date::date`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: positions trend")
	}
	defer rows.Close()

	var trend []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Date, &p.ActivePositions, &p.TotalExposure); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trend point")
		}
		trend = append(trend, p)
	}
	return trend, eris.Wrap(rows.Err(), "postgres: positions trend iterate")
}

// Analytics cache

// GetCachedAnalytics returns the cached payload for key, or nil when no
// live entry exists. Expiry is checked on every lookup.
func (s *PostgresStore) GetCachedAnalytics(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT cache_data FROM analytics_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached analytics")
	}
	return data, nil
}

// SetCachedAnalytics replaces any prior entry for key with a fresh row.
// Entries are never updated in place: delete then insert, one
// transaction. Concurrent writers race and the last one wins.
func (s *PostgresStore) SetCachedAnalytics(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: cache begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM analytics_cache WHERE cache_key = $1`, key); err != nil {
		return eris.Wrap(err, "postgres: cache delete prior")
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO analytics_cache (id, cache_key, cache_data, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), key, payload, now.Add(ttl), now); err != nil {
		return eris.Wrap(err, "postgres: cache insert")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: cache commit")
}

func (s *PostgresStore) DeleteExpiredAnalytics(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analytics_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired analytics")
	}
	return int(tag.RowsAffected()), nil
}

// Backup restore / export

// ImportDisclosures bulk-loads normalized disclosure records. Countries
// must already exist; companies and managers are created on first
// sight. Rows go in via COPY.
func (s *PostgresStore) ImportDisclosures(ctx context.Context, records []model.DisclosureRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	countries, err := s.countryIDsByCode(ctx)
	if err != nil {
		return 0, err
	}
	companies, err := s.companyIDsByKey(ctx)
	if err != nil {
		return 0, err
	}
	managers, err := s.managerIDsByName(ctx)
	if err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		date, err := parseRecordDate(rec.Date)
		if err != nil {
			return 0, err
		}
		code := strings.ToUpper(rec.CountryCode)
		countryID, ok := countries[code]
		if !ok {
			return 0, eris.Errorf("postgres: unknown country code %q", rec.CountryCode)
		}

		companyKey := companyKey(code, rec.CompanyName)
		companyID, ok := companies[companyKey]
		if !ok {
			if err := s.pool.QueryRow(ctx,
				`INSERT INTO companies (name, isin, country_id) VALUES ($1, NULLIF($2, ''), $3)
				 ON CONFLICT (name, country_id) DO UPDATE SET isin = COALESCE(companies.isin, EXCLUDED.isin)
				 RETURNING id`,
				rec.CompanyName, rec.ISIN, countryID,
			).Scan(&companyID); err != nil {
				return 0, eris.Wrapf(err, "postgres: ensure company %q", rec.CompanyName)
			}
			companies[companyKey] = companyID
		}

		managerID, ok := managers[strings.ToLower(rec.ManagerName)]
		if !ok {
			if err := s.pool.QueryRow(ctx,
				`INSERT INTO managers (name, slug) VALUES ($1, $2)
				 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
				 RETURNING id`,
				rec.ManagerName, model.Slugify(rec.ManagerName),
			).Scan(&managerID); err != nil {
				return 0, eris.Wrapf(err, "postgres: ensure manager %q", rec.ManagerName)
			}
			managers[strings.ToLower(rec.ManagerName)] = managerID
		}

		rows = append(rows, []any{date, companyID, managerID, countryID, rec.PositionSize, rec.IsActive})
	}

	return db.CopyFrom(ctx, s.pool, "short_positions",
		[]string{"date", "company_id", "manager_id", "country_id", "position_size", "is_active"}, rows)
}

func (s *PostgresStore) countryIDsByCode(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code FROM countries`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load country ids")
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, eris.Wrap(err, "postgres: scan country id")
		}
		ids[code] = id
	}
	return ids, eris.Wrap(rows.Err(), "postgres: load country ids iterate")
}

func (s *PostgresStore) companyIDsByKey(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, co.code, c.name FROM companies c JOIN countries co ON co.id = c.country_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load company ids")
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var code, name string
		if err := rows.Scan(&id, &code, &name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company id")
		}
		ids[companyKey(code, name)] = id
	}
	return ids, eris.Wrap(rows.Err(), "postgres: load company ids iterate")
}

func (s *PostgresStore) managerIDsByName(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM managers`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load manager ids")
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan manager id")
		}
		ids[strings.ToLower(name)] = id
	}
	return ids, eris.Wrap(rows.Err(), "postgres: load manager ids iterate")
}

func companyKey(countryCode, name string) string {
	return countryCode + "|" + strings.ToLower(name)
}

func (s *PostgresStore) ExportDisclosures(ctx context.Context, f ExportFilter) ([]model.DisclosureRecord, error) {
	query := `SELECT sp.date, co.code, c.name, COALESCE(c.isin, ''), m.name, sp.position_size, sp.is_active
	FROM short_positions sp
	JOIN companies c ON c.id = sp.company_id
	JOIN managers m ON m.id = sp.manager_id
	JOIN countries co ON co.id = sp.country_id
	WHERE true`
	args := []any{}
	argIdx := 1

	if f.CountryCode != "" {
		query += fmt.Sprintf(` AND co.code = $%d`, argIdx)
		args = append(args, strings.ToUpper(f.CountryCode))
		argIdx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(` AND sp.date >= $%d`, argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	query += ` ORDER BY sp.date, sp.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: export disclosures")
	}
	defer rows.Close()

	var records []model.DisclosureRecord
	for rows.Next() {
		var rec model.DisclosureRecord
		var date time.Time
		if err := rows.Scan(&date, &rec.CountryCode, &rec.CompanyName, &rec.ISIN,
			&rec.ManagerName, &rec.PositionSize, &rec.IsActive); err != nil {
			return nil, eris.Wrap(err, "postgres: scan export row")
		}
		rec.Date = date.Format(model.ISODate)
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: export disclosures iterate")
}
