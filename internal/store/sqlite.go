package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shorttrack/shorttrack/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// local development and small single-country datasets; production runs
// on PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS countries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	flag       TEXT NOT NULL DEFAULT '',
	priority   TEXT NOT NULL DEFAULT 'high',
	url        TEXT NOT NULL DEFAULT '',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	isin       TEXT,
	country_id INTEGER NOT NULL REFERENCES countries(id),
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (name, country_id)
);

CREATE TABLE IF NOT EXISTS managers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	slug       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS short_positions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	date          DATETIME NOT NULL,
	change_date   DATETIME,
	company_id    INTEGER NOT NULL REFERENCES companies(id),
	manager_id    INTEGER NOT NULL REFERENCES managers(id),
	country_id    INTEGER NOT NULL REFERENCES countries(id),
	position_size REAL NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 1,
	source_url    TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
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
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cache_expires ON analytics_cache(expires_at);
`

var sqliteSeedCountries = [][3]string{
	{"AT", "Austria", "🇦🇹"},
	{"BE", "Belgium", "🇧🇪"},
	{"DE", "Germany", "🇩🇪"},
	{"DK", "Denmark", "🇩🇰"},
	{"ES", "Spain", "🇪🇸"},
	{"FI", "Finland", "🇫🇮"},
	{"FR", "France", "🇫🇷"},
	{"GB", "United Kingdom", "🇬🇧"},
	{"IE", "Ireland", "🇮🇪"},
	{"IT", "Italy", "🇮🇹"},
	{"NL", "Netherlands", "🇳🇱"},
	{"NO", "Norway", "🇳🇴"},
	{"PT", "Portugal", "🇵🇹"},
	{"SE", "Sweden", "🇸🇪"},
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	for _, c := range sqliteSeedCountries {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO countries (code, name, flag) VALUES (?, ?, ?) ON CONFLICT (code) DO NOTHING`,
			c[0], c[1], c[2]); err != nil {
			return eris.Wrapf(err, "sqlite: seed country %s", c[0])
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reference entities

func (s *SQLiteStore) GetCountry(ctx context.Context, id int64) (*model.Country, error) {
	return scanSQLiteCountry(s.db.QueryRowContext(ctx,
		`SELECT id, code, name, flag, priority, url, is_active FROM countries WHERE id = ?`, id))
}

func (s *SQLiteStore) GetCountryByCode(ctx context.Context, code string) (*model.Country, error) {
	return scanSQLiteCountry(s.db.QueryRowContext(ctx,
		`SELECT id, code, name, flag, priority, url, is_active FROM countries WHERE code = ?`,
		strings.ToUpper(code)))
}

func scanSQLiteCountry(row *sql.Row) (*model.Country, error) {
	var c model.Country
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Flag, &c.Priority, &c.URL, &c.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "sqlite: country")
		}
		return nil, eris.Wrap(err, "sqlite: get country")
	}
	return &c, nil
}

func (s *SQLiteStore) ListCountries(ctx context.Context) ([]model.Country, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, flag, priority, url, is_active FROM countries ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list countries")
	}
	defer rows.Close()

	var countries []model.Country
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Flag, &c.Priority, &c.URL, &c.IsActive); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country")
		}
		countries = append(countries, c)
	}
	return countries, eris.Wrap(rows.Err(), "sqlite: list countries iterate")
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	var isin sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.isin, co.id, co.code, co.name, co.flag
		 FROM companies c
		 JOIN countries co ON co.id = c.country_id
		 WHERE c.id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &isin, &c.Country.ID, &c.Country.Code, &c.Country.Name, &c.Country.Flag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: company %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get company %d", id)
	}
	c.ISIN = isin.String
	return &c, nil
}

func (s *SQLiteStore) GetManager(ctx context.Context, id int64) (*model.Manager, error) {
	return scanSQLiteManager(s.db.QueryRowContext(ctx,
		`SELECT id, name, slug FROM managers WHERE id = ?`, id))
}

func (s *SQLiteStore) GetManagerBySlug(ctx context.Context, slug string) (*model.Manager, error) {
	return scanSQLiteManager(s.db.QueryRowContext(ctx,
		`SELECT id, name, slug FROM managers WHERE slug = ?`, slug))
}

func scanSQLiteManager(row *sql.Row) (*model.Manager, error) {
	var m model.Manager
	err := row.Scan(&m.ID, &m.Name, &m.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "sqlite: manager")
		}
		return nil, eris.Wrap(err, "sqlite: get manager")
	}
	return &m, nil
}

// Disclosure reads

func (s *SQLiteStore) ActivePositions(ctx context.Context, f SnapshotFilter) ([]model.Position, error) {
	query := `SELECT sp.id, sp.date, sp.position_size, sp.is_active,
	       c.id, c.name, m.id, m.name, m.slug, co.id, co.code, co.name, co.flag
	FROM short_positions sp
	JOIN companies c ON c.id = sp.company_id
	JOIN managers m ON m.id = sp.manager_id
	JOIN countries co ON co.id = sp.country_id
	WHERE sp.is_active = 1`
	var args []any

	if f.CountryID != nil {
		query += ` AND sp.country_id = ?`
		args = append(args, *f.CountryID)
	}
	if f.AsOf != nil {
		query += ` AND sp.date <= ?`
		args = append(args, f.AsOf.UTC())
	}
	query += ` ORDER BY sp.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active positions")
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.ID, &p.Date, &p.PositionSize, &p.IsActive,
			&p.CompanyID, &p.CompanyName, &p.ManagerID, &p.ManagerName, &p.ManagerSlug,
			&p.CountryID, &p.CountryCode, &p.CountryName, &p.CountryFlag); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan active position")
		}
		positions = append(positions, p)
	}
	return positions, eris.Wrap(rows.Err(), "sqlite: active positions iterate")
}

func (s *SQLiteStore) CountActivePositions(ctx context.Context, countryID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM short_positions WHERE country_id = ? AND is_active = 1`,
		countryID,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count active positions")
}

func (s *SQLiteStore) LatestDisclosureDate(ctx context.Context, countryID int64) (*time.Time, error) {
	var latest time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT date FROM short_positions WHERE country_id = ? ORDER BY date DESC, id DESC LIMIT 1`,
		countryID,
	).Scan(&latest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest disclosure date")
	}
	return &latest, nil
}

func (s *SQLiteStore) CompanyTimelineEvents(ctx context.Context, companyID int64, since time.Time) ([]model.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.name, sp.date, sp.position_size
		 FROM short_positions sp
		 JOIN managers m ON m.id = sp.manager_id
		 WHERE sp.company_id = ? AND sp.date >= ?
		 ORDER BY m.id, sp.date`,
		companyID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: timeline events for company %d", companyID)
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		if err := rows.Scan(&e.ManagerName, &e.Date, &e.PositionSize); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan timeline event")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: timeline events iterate")
}

func (s *SQLiteStore) ManagerPositions(ctx context.Context, managerID int64) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sp.id, sp.date, sp.position_size, sp.is_active,
		        c.id, c.name, co.id, co.code, co.name, co.flag
		 FROM short_positions sp
		 JOIN companies c ON c.id = sp.company_id
		 JOIN countries co ON co.id = c.country_id
		 WHERE sp.manager_id = ?
		 ORDER BY c.id, sp.date DESC, sp.id DESC`,
		managerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: positions for manager %d", managerID)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p := model.Position{ManagerID: managerID}
		if err := rows.Scan(&p.ID, &p.Date, &p.PositionSize, &p.IsActive,
			&p.CompanyID, &p.CompanyName, &p.CountryID, &p.CountryCode, &p.CountryName, &p.CountryFlag); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan manager position")
		}
		positions = append(positions, p)
	}
	return positions, eris.Wrap(rows.Err(), "sqlite: manager positions iterate")
}

func (s *SQLiteStore) CompanyAggregatesDirect(ctx context.Context, countryID int64) ([]CompanyAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, SUM(sp.position_size), AVG(sp.position_size), COUNT(sp.id), MAX(sp.date)
		 FROM companies c
		 JOIN short_positions sp ON sp.company_id = c.id
		 WHERE sp.country_id = ? AND sp.is_active = 1
		 GROUP BY c.id, c.name`,
		countryID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: direct aggregates for country %d", countryID)
	}
	defer rows.Close()

	var aggs []CompanyAggregate
	for rows.Next() {
		var a CompanyAggregate
		var mostRecent sql.NullString
		if err := rows.Scan(&a.CompanyID, &a.CompanyName, &a.TotalExposure, &a.AverageSize,
			&a.PositionCount, &mostRecent); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan direct aggregate")
		}
		if mostRecent.Valid {
			t, err := parseSQLiteTime(mostRecent.String)
			if err != nil {
				return nil, err
			}
			a.MostRecentPositionDate = t
		}
		aggs = append(aggs, a)
	}
	return aggs, eris.Wrap(rows.Err(), "sqlite: direct aggregates iterate")
}

func (s *SQLiteStore) CompanyTotalsDirect(ctx context.Context, countryID int64, asOf time.Time) (map[int64]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, SUM(sp.position_size)
		 FROM companies c
		 JOIN short_positions sp ON sp.company_id = c.id
		 WHERE sp.country_id = ? AND sp.is_active = 1 AND sp.date <= ?
		 GROUP BY c.id`,
		countryID, asOf.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: direct totals for country %d", countryID)
	}
	defer rows.Close()

	totals := make(map[int64]float64)
	for rows.Next() {
		var companyID int64
		var total float64
		if err := rows.Scan(&companyID, &total); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan direct total")
		}
		totals[companyID] = total
	}
	return totals, eris.Wrap(rows.Err(), "sqlite: direct totals iterate")
}

// Global dashboard reads

func (s *SQLiteStore) GlobalSummary(ctx context.Context, since time.Time) (*SummaryCounts, error) {
	var sc SummaryCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT country_id), COUNT(DISTINCT company_id), COUNT(DISTINCT manager_id)
		 FROM short_positions WHERE date >= ? AND is_active = 1`,
		since.UTC(),
	).Scan(&sc.ActivePositions, &sc.Countries, &sc.Companies, &sc.Managers)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: global summary")
	}

	var latest time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT date FROM short_positions ORDER BY date DESC, id DESC LIMIT 1`,
	).Scan(&latest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no disclosures at all
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: global summary latest date")
	default:
		sc.LatestDate = &latest
	}
	return &sc, nil
}

func (s *SQLiteStore) TopCountriesByActivity(ctx context.Context, since time.Time, limit int) ([]CountryActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT co.name, co.flag, COUNT(sp.id), COALESCE(SUM(sp.position_size), 0)
		 FROM countries co
		 JOIN short_positions sp ON sp.country_id = co.id
		 WHERE sp.date >= ? AND sp.is_active = 1
		 GROUP BY co.id, co.name, co.flag
		 ORDER BY COUNT(sp.id) DESC
		 LIMIT ?`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top countries")
	}
	defer rows.Close()

	var activity []CountryActivity
	for rows.Next() {
		var a CountryActivity
		if err := rows.Scan(&a.Name, &a.Flag, &a.ActivePositions, &a.TotalExposure); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan country activity")
		}
		activity = append(activity, a)
	}
	return activity, eris.Wrap(rows.Err(), "sqlite: top countries iterate")
}

func (s *SQLiteStore) PositionsTrend(ctx context.Context, since time.Time) ([]TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(date), COUNT(id), COALESCE(SUM(position_size), 0)
		 FROM short_positions
		 WHERE date >= ? AND is_active = 1
		 GROUP BY date(date)
		 ORDER BY date(date)`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: positions trend")
	}
	defer rows.Close()

	var trend []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var day string
		if err := rows.Scan(&day, &p.ActivePositions, &p.TotalExposure); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trend point")
		}
		t, err := time.Parse(model.ISODate, day)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse trend date %q", day)
		}
		p.Date = t
		trend = append(trend, p)
	}
	return trend, eris.Wrap(rows.Err(), "sqlite: positions trend iterate")
}

// Analytics cache

func (s *SQLiteStore) GetCachedAnalytics(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT cache_data FROM analytics_cache WHERE cache_key = ? AND expires_at > datetime('now')`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get cached analytics")
	}
	return data, nil
}

func (s *SQLiteStore) SetCachedAnalytics(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: cache begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM analytics_cache WHERE cache_key = ?`, key); err != nil {
		return eris.Wrap(err, "sqlite: cache delete prior")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analytics_cache (id, cache_key, cache_data, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), key, payload, now.Add(ttl), now); err != nil {
		return eris.Wrap(err, "sqlite: cache insert")
	}

	return eris.Wrap(tx.Commit(), "sqlite: cache commit")
}

func (s *SQLiteStore) DeleteExpiredAnalytics(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analytics_cache WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired analytics")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired rows affected")
	}
	return int(n), nil
}

// Backup restore / export

func (s *SQLiteStore) ImportDisclosures(ctx context.Context, records []model.DisclosureRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback()

	var inserted int64
	for _, rec := range records {
		date, err := parseRecordDate(rec.Date)
		if err != nil {
			return 0, err
		}
		code := strings.ToUpper(rec.CountryCode)

		var countryID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM countries WHERE code = ?`, code).Scan(&countryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, eris.Errorf("sqlite: unknown country code %q", rec.CountryCode)
			}
			return 0, eris.Wrap(err, "sqlite: lookup country")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO companies (name, isin, country_id) VALUES (?, NULLIF(?, ''), ?)
			 ON CONFLICT (name, country_id) DO NOTHING`,
			rec.CompanyName, rec.ISIN, countryID); err != nil {
			return 0, eris.Wrapf(err, "sqlite: ensure company %q", rec.CompanyName)
		}
		var companyID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM companies WHERE name = ? AND country_id = ?`,
			rec.CompanyName, countryID).Scan(&companyID); err != nil {
			return 0, eris.Wrapf(err, "sqlite: lookup company %q", rec.CompanyName)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO managers (name, slug) VALUES (?, ?)
			 ON CONFLICT (slug) DO UPDATE SET name = excluded.name`,
			rec.ManagerName, model.Slugify(rec.ManagerName)); err != nil {
			return 0, eris.Wrapf(err, "sqlite: ensure manager %q", rec.ManagerName)
		}
		var managerID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM managers WHERE slug = ?`,
			model.Slugify(rec.ManagerName)).Scan(&managerID); err != nil {
			return 0, eris.Wrapf(err, "sqlite: lookup manager %q", rec.ManagerName)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO short_positions (date, company_id, manager_id, country_id, position_size, is_active)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			date.UTC(), companyID, managerID, countryID, rec.PositionSize, rec.IsActive); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert disclosure")
		}
		inserted++
	}

	return inserted, eris.Wrap(tx.Commit(), "sqlite: import commit")
}

func (s *SQLiteStore) ExportDisclosures(ctx context.Context, f ExportFilter) ([]model.DisclosureRecord, error) {
	query := `SELECT sp.date, co.code, c.name, COALESCE(c.isin, ''), m.name, sp.position_size, sp.is_active
	FROM short_positions sp
	JOIN companies c ON c.id = sp.company_id
	JOIN managers m ON m.id = sp.manager_id
	JOIN countries co ON co.id = sp.country_id
	WHERE 1=1`
	var args []any

	if f.CountryCode != "" {
		query += ` AND co.code = ?`
		args = append(args, strings.ToUpper(f.CountryCode))
	}
	if f.Since != nil {
		query += ` AND sp.date >= ?`
		args = append(args, f.Since.UTC())
	}
	query += ` ORDER BY sp.date, sp.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: export disclosures")
	}
	defer rows.Close()

	var records []model.DisclosureRecord
	for rows.Next() {
		var rec model.DisclosureRecord
		var date time.Time
		if err := rows.Scan(&date, &rec.CountryCode, &rec.CompanyName, &rec.ISIN,
			&rec.ManagerName, &rec.PositionSize, &rec.IsActive); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan export row")
		}
		rec.Date = date.Format(model.ISODate)
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: export disclosures iterate")
}

// parseSQLiteTime handles the formats SQLite hands back for datetime
// expressions, where the driver cannot infer a column type.
func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		model.ISODate,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("sqlite: unparseable datetime %q", s)
}
