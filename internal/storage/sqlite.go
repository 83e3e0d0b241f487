package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for articles, financial
// statements, and reports.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "stockradar.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	// Report child tables rely on ON DELETE CASCADE.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the vector store, which manages
// the article_vectors table directly.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Articles ---

// InsertArticle stores an article if its canonical URL has not been seen
// before. Returns false without error when the URL already exists, so the
// first-seen row always wins.
func (s *Store) InsertArticle(a Article) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO articles (id, title, summary, source, provider, canonical_url, published_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(canonical_url) DO NOTHING`,
		a.ID, a.Title, a.Summary, a.Source, a.Provider, a.CanonicalURL,
		a.PublishedAt.UTC().Format(time.RFC3339), a.CollectedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetArticle(id string) (Article, error) {
	row := s.db.QueryRow(`
		SELECT id, title, summary, source, provider, canonical_url, published_at, collected_at
		FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return Article{}, ErrNotFound
	}
	return a, err
}

// GetArticlesByIDs returns the articles that still exist for the given IDs.
// Missing IDs are silently skipped; rows can vanish between pipeline stages.
func (s *Store) GetArticlesByIDs(ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, title, summary, source, provider, canonical_url, published_at, collected_at
		FROM articles WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// ListArticles returns articles published inside [from, to], newest first.
func (s *Store) ListArticles(from, to time.Time, limit int) ([]Article, error) {
	rows, err := s.db.Query(`
		SELECT id, title, summary, source, provider, canonical_url, published_at, collected_at
		FROM articles
		WHERE published_at >= ? AND published_at <= ?
		ORDER BY published_at DESC LIMIT ?`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var a Article
	var publishedAt, collectedAt string
	if err := row.Scan(&a.ID, &a.Title, &a.Summary, &a.Source, &a.Provider, &a.CanonicalURL, &publishedAt, &collectedAt); err != nil {
		return Article{}, err
	}
	var err error
	if a.PublishedAt, err = time.Parse(time.RFC3339, publishedAt); err != nil {
		return Article{}, fmt.Errorf("parsing published_at: %w", err)
	}
	if a.CollectedAt, err = time.Parse(time.RFC3339, collectedAt); err != nil {
		return Article{}, fmt.Errorf("parsing collected_at: %w", err)
	}
	return a, nil
}

func collectArticles(rows *sql.Rows) ([]Article, error) {
	var results []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Financial statements ---

func (s *Store) GetFinancialStatement(stockCode, registryCode string, fiscalYear int) (FinancialStatement, error) {
	var fs FinancialStatement
	var fetchedAt string
	err := s.db.QueryRow(`
		SELECT stock_code, registry_code, fiscal_year, line_items, fetched_at
		FROM financial_statements
		WHERE stock_code = ? AND registry_code = ? AND fiscal_year = ?`,
		stockCode, registryCode, fiscalYear,
	).Scan(&fs.StockCode, &fs.RegistryCode, &fs.FiscalYear, &fs.LineItems, &fetchedAt)
	if err == sql.ErrNoRows {
		return FinancialStatement{}, ErrNotFound
	}
	if err != nil {
		return FinancialStatement{}, err
	}
	if fs.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt); err != nil {
		return FinancialStatement{}, fmt.Errorf("parsing fetched_at: %w", err)
	}
	return fs, nil
}

func (s *Store) SaveFinancialStatement(fs FinancialStatement) error {
	fetchedAt := fs.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO financial_statements (stock_code, registry_code, fiscal_year, line_items, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stock_code, registry_code, fiscal_year)
		DO UPDATE SET line_items = excluded.line_items, fetched_at = excluded.fetched_at`,
		fs.StockCode, fs.RegistryCode, fs.FiscalYear, fs.LineItems, fetchedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// --- Reports ---

// SaveReport persists a report and all of its children in one transaction.
// With replace set, an existing report for the same analysis date is deleted
// first; the UNIQUE index on analysis_date arbitrates concurrent writers.
func (s *Store) SaveReport(r Report, replace bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning report transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.Exec(`DELETE FROM reports WHERE analysis_date = ?`, r.AnalysisDate); err != nil {
			return fmt.Errorf("deleting existing report for %s: %w", r.AnalysisDate, err)
		}
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.Exec(`
		INSERT INTO reports (id, title, summary, analysis_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Summary, r.AnalysisDate, createdAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}

	for _, ind := range r.Industries {
		if _, err := tx.Exec(`
			INSERT INTO report_industries (id, report_id, name, impact_level, impact_description, trend_direction, selection_reason, related_article_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ind.ID, r.ID, ind.Name, ind.ImpactLevel, ind.ImpactDescription,
			ind.TrendDirection, ind.SelectionReason, ind.RelatedArticleIDs,
		); err != nil {
			return fmt.Errorf("inserting industry %s: %w", ind.Name, err)
		}
		for _, c := range ind.Companies {
			if _, err := tx.Exec(`
				INSERT INTO report_companies (id, report_id, industry_id, stock_code, stock_name, registry_code, health_score, score_breakdown, reasoning)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, r.ID, ind.ID, c.StockCode, c.StockName, c.RegistryCode,
				c.HealthScore, c.ScoreBreakdown, c.Reasoning,
			); err != nil {
				return fmt.Errorf("inserting company %s: %w", c.StockCode, err)
			}
		}
	}

	for _, ra := range r.Articles {
		if _, err := tx.Exec(`
			INSERT INTO report_articles (report_id, article_id, score, reason)
			VALUES (?, ?, ?, ?)`,
			r.ID, ra.ArticleID, ra.Score, ra.Reason,
		); err != nil {
			return fmt.Errorf("inserting report article %s: %w", ra.ArticleID, err)
		}
	}

	return tx.Commit()
}

// GetReportIDByDate returns the id of the report for the given analysis date,
// or ErrNotFound. Used as the duplicate-run guard before any model call.
func (s *Store) GetReportIDByDate(analysisDate string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM reports WHERE analysis_date = ?`, analysisDate).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

func (s *Store) GetReport(id string) (Report, error) {
	var r Report
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, summary, analysis_date, created_at FROM reports WHERE id = ?`, id,
	).Scan(&r.ID, &r.Title, &r.Summary, &r.AnalysisDate, &createdAt)
	if err == sql.ErrNoRows {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Report{}, fmt.Errorf("parsing created_at: %w", err)
	}

	if r.Industries, err = s.loadIndustries(r.ID); err != nil {
		return Report{}, err
	}
	if r.Articles, err = s.loadReportArticles(r.ID); err != nil {
		return Report{}, err
	}
	return r, nil
}

func (s *Store) GetReportByDate(analysisDate string) (Report, error) {
	id, err := s.GetReportIDByDate(analysisDate)
	if err != nil {
		return Report{}, err
	}
	return s.GetReport(id)
}

func (s *Store) loadIndustries(reportID string) ([]ReportIndustry, error) {
	rows, err := s.db.Query(`
		SELECT id, report_id, name, impact_level, impact_description, trend_direction, selection_reason, related_article_ids
		FROM report_industries WHERE report_id = ? ORDER BY rowid`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var industries []ReportIndustry
	for rows.Next() {
		var ind ReportIndustry
		if err := rows.Scan(&ind.ID, &ind.ReportID, &ind.Name, &ind.ImpactLevel,
			&ind.ImpactDescription, &ind.TrendDirection, &ind.SelectionReason, &ind.RelatedArticleIDs); err != nil {
			return nil, err
		}
		industries = append(industries, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range industries {
		companies, err := s.loadCompanies(industries[i].ID)
		if err != nil {
			return nil, err
		}
		industries[i].Companies = companies
	}
	return industries, nil
}

func (s *Store) loadCompanies(industryID string) ([]ReportCompany, error) {
	rows, err := s.db.Query(`
		SELECT id, industry_id, stock_code, stock_name, registry_code, health_score, score_breakdown, reasoning
		FROM report_companies WHERE industry_id = ? ORDER BY rowid`, industryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []ReportCompany
	for rows.Next() {
		var c ReportCompany
		var score sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.IndustryID, &c.StockCode, &c.StockName,
			&c.RegistryCode, &score, &c.ScoreBreakdown, &c.Reasoning); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			c.HealthScore = &v
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (s *Store) loadReportArticles(reportID string) ([]ReportArticle, error) {
	rows, err := s.db.Query(`
		SELECT article_id, score, reason FROM report_articles
		WHERE report_id = ? ORDER BY score DESC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []ReportArticle
	for rows.Next() {
		var ra ReportArticle
		if err := rows.Scan(&ra.ArticleID, &ra.Score, &ra.Reason); err != nil {
			return nil, err
		}
		articles = append(articles, ra)
	}
	return articles, rows.Err()
}
