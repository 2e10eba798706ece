package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/reference"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectPaperFields contains the standard field list for SELECT queries.
const selectPaperFields = `paper_key, title, abstract, venue, volume, issue, pages,
	year, doi, arxiv_id, source, pdf_path, note_path,
	authors_json, processed_at`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS papers (
			paper_key TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT,
			venue TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			year INTEGER NOT NULL,
			doi TEXT,
			arxiv_id TEXT,
			source TEXT,
			pdf_path TEXT,
			note_path TEXT,
			authors_json TEXT NOT NULL,
			processed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi) WHERE doi IS NOT NULL AND doi != '';

		-- Standalone full-text table keyed by paper key
		CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
			paper_key,
			title,
			abstract,
			authors_text,
			venue,
			year
		);

		-- Retained bibliography entries, one row per citation
		CREATE TABLE IF NOT EXISTS citations (
			citing_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT,
			norm_title TEXT,
			authors_json TEXT,
			year INTEGER,
			venue TEXT,
			doi TEXT,
			raw TEXT,
			garbage_score INTEGER NOT NULL,
			PRIMARY KEY (citing_key, position)
		);

		CREATE INDEX IF NOT EXISTS idx_citations_doi ON citations(doi) WHERE doi IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_citations_title ON citations(norm_title) WHERE norm_title IS NOT NULL;

		CREATE TABLE IF NOT EXISTS articles (
			url TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL,
			publisher TEXT,
			published TEXT,
			note_path TEXT,
			processed_at TEXT
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
			url,
			title,
			authors_text,
			publisher
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the paper tables and rebuilds them from a JSONL file.
func (d *DB) RebuildFromJSONL(jsonlPath string) (int, error) {
	papers, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"papers", "papers_fts", "citations"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clearing %s table: %w", table, err)
		}
	}

	for _, p := range papers {
		if err := insertPaper(tx, p); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(papers), nil
}

// UpsertPaper replaces one paper and its citations in the index.
func (d *DB) UpsertPaper(p reference.Paper) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stale, err := staleKeys(tx, p)
	if err != nil {
		return err
	}
	for _, key := range stale {
		for _, table := range []string{"papers", "papers_fts"} {
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE paper_key = ?", key); err != nil {
				return fmt.Errorf("deleting %s from %s: %w", key, table, err)
			}
		}
		if _, err := tx.Exec("DELETE FROM citations WHERE citing_key = ?", key); err != nil {
			return fmt.Errorf("deleting citations of %s: %w", key, err)
		}
	}

	if err := insertPaper(tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// staleKeys returns the keys of indexed rows describing the same work as p,
// including p's own key. A paper gains a DOI-based key once its DOI is known.
func staleKeys(tx *sql.Tx, p reference.Paper) ([]string, error) {
	rows, err := tx.Query(`
		SELECT paper_key FROM papers
		WHERE paper_key = ?
		   OR (? != '' AND arxiv_id = ?)
		   OR (? != '' AND lower(doi) = lower(?))`,
		p.Key(), p.ArXivID, p.ArXivID, p.DOI, p.DOI)
	if err != nil {
		return nil, fmt.Errorf("finding existing rows: %w", err)
	}
	defer rows.Close()

	keys := []string{p.Key()}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		if k != keys[0] {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

func insertPaper(tx *sql.Tx, p reference.Paper) error {
	key := p.Key()
	authorsJSON, err := json.Marshal(p.Authors)
	if err != nil {
		return fmt.Errorf("marshaling authors for %s: %w", key, err)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO papers (`+selectPaperFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, p.Title, nullableStringValue(p.Abstract), nullableStringValue(p.Venue),
		nullableStringValue(p.Volume), nullableStringValue(p.Issue), nullableStringValue(p.Pages),
		p.Year, nullableStringValue(p.DOI), nullableStringValue(p.ArXivID),
		nullableStringValue(p.Source), nullableStringValue(p.PDFPath), nullableStringValue(p.NotePath),
		string(authorsJSON), nullableTime(p.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting paper %s: %w", key, err)
	}

	_, err = tx.Exec(`
		INSERT INTO papers_fts (paper_key, title, abstract, authors_text, venue, year)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key, p.Title, p.Abstract, formatAuthorsText(p.Authors), p.Venue, strconv.Itoa(p.Year))
	if err != nil {
		return fmt.Errorf("inserting fts for %s: %w", key, err)
	}

	return insertCitations(tx, key, p.Citations)
}

// formatAuthorsText creates a searchable text representation of authors.
func formatAuthorsText(authors []reference.Author) string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.FullName()
	}
	return strings.Join(names, ", ")
}

// GetByKey retrieves a paper by its Key. Citations are not loaded.
func (d *DB) GetByKey(key string) (*reference.Paper, error) {
	row := d.db.QueryRow(`SELECT `+selectPaperFields+` FROM papers WHERE paper_key = ?`, key)
	return scanPaper(row)
}

// Search performs a full-text search over titles, abstracts, authors and venues.
func (d *DB) Search(query string, limit int) ([]reference.Paper, error) {
	rows, err := d.db.Query(`
		SELECT `+selectPaperFields+`
		FROM papers
		WHERE paper_key IN (SELECT paper_key FROM papers_fts WHERE papers_fts MATCH ?)
		ORDER BY year DESC, title
		LIMIT ?`, prepareFTSQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// SearchFilters contains optional filters for SearchWithFilters.
type SearchFilters struct {
	Keyword  string // General keyword search across all fields
	Author   string // Author name (prefix matching on each word)
	YearFrom int    // Minimum publication year (0 = no minimum)
	YearTo   int    // Maximum publication year (0 = no maximum)
	Venue    string // Filter by venue (SQL LIKE, case-insensitive)
	Source   string // Exact source match (arxiv, local, web)
}

// SearchWithFilters returns papers matching ALL specified criteria. A
// limit of zero or less returns every match.
func (d *DB) SearchWithFilters(filters SearchFilters, limit int) ([]reference.Paper, error) {
	var ftsTerms []string
	var args []any

	if filters.Keyword != "" {
		ftsTerms = append(ftsTerms, prepareFTSQuery(filters.Keyword))
	}
	if filters.Author != "" {
		ftsTerms = append(ftsTerms, "authors_text:"+prepareAuthorQuery(filters.Author))
	}

	var query string
	if len(ftsTerms) > 0 {
		query = `SELECT ` + selectPaperFields + `
			FROM papers
			WHERE paper_key IN (SELECT paper_key FROM papers_fts WHERE papers_fts MATCH ?)`
		args = append(args, strings.Join(ftsTerms, " AND "))
	} else {
		query = `SELECT ` + selectPaperFields + ` FROM papers WHERE 1=1`
	}

	if filters.YearFrom > 0 {
		query += " AND year >= ?"
		args = append(args, filters.YearFrom)
	}
	if filters.YearTo > 0 {
		query += " AND year <= ?"
		args = append(args, filters.YearTo)
	}
	if filters.Venue != "" {
		query += " AND venue LIKE ?"
		args = append(args, "%"+filters.Venue+"%")
	}
	if filters.Source != "" {
		query += " AND source = ?"
		args = append(args, filters.Source)
	}

	query += " ORDER BY year DESC, title"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching with filters: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// prepareAuthorQuery prepares an author name for FTS5 search with prefix
// matching, so "Tim" matches "Timothy".
func prepareAuthorQuery(author string) string {
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}
	terms := make([]string, len(parts))
	for i, part := range parts {
		terms[i] = "\"" + strings.ReplaceAll(part, "\"", "\"\"") + "\"*"
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// ListAll returns all papers ordered by key, optionally limited.
func (d *DB) ListAll(limit int) ([]reference.Paper, error) {
	query := `SELECT ` + selectPaperFields + ` FROM papers ORDER BY paper_key`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// Count returns the total number of papers.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM papers").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(s scanner) (*reference.Paper, error) {
	var p reference.Paper
	var key, authorsJSON string
	var abstract, venue, volume, issue, pages sql.NullString
	var doi, arxivID, source, pdfPath, notePath, processedAt sql.NullString

	err := s.Scan(
		&key, &p.Title, &abstract, &venue, &volume, &issue, &pages,
		&p.Year, &doi, &arxivID, &source, &pdfPath, &notePath,
		&authorsJSON, &processedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Abstract = abstract.String
	p.Venue = venue.String
	p.Volume = volume.String
	p.Issue = issue.String
	p.Pages = pages.String
	p.DOI = doi.String
	p.ArXivID = arxivID.String
	p.Source = source.String
	p.PDFPath = pdfPath.String
	p.NotePath = notePath.String
	if processedAt.Valid {
		if t, err := time.Parse(time.RFC3339, processedAt.String); err == nil {
			p.ProcessedAt = t
		}
	}

	if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
		return nil, fmt.Errorf("parsing authors JSON for %s: %w", key, err)
	}
	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]reference.Paper, error) {
	var papers []reference.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			papers = append(papers, *p)
		}
	}
	return papers, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,/") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
