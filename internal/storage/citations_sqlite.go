package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/reference"
)

// CitationStats summarizes the retained citations in the index.
type CitationStats struct {
	Total      int                   `json:"total"`
	WithDOI    int                   `json:"with_doi"`
	MeanScore  float64               `json:"mean_garbage_score"`
	ByBand     map[citation.Band]int `json:"by_band"`
	CitingKeys int                   `json:"citing_papers"`
}

func insertCitations(tx *sql.Tx, citingKey string, cites []reference.Citation) error {
	if len(cites) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO citations (
			citing_key, position, title, norm_title, authors_json,
			year, venue, doi, raw, garbage_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing citations insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range cites {
		var authorsJSON []byte
		if len(c.Authors) > 0 {
			if authorsJSON, err = json.Marshal(c.Authors); err != nil {
				return fmt.Errorf("marshaling citation authors: %w", err)
			}
		}
		var year sql.NullInt64
		if c.Year > 0 {
			year = sql.NullInt64{Int64: int64(c.Year), Valid: true}
		}

		_, err = stmt.Exec(
			citingKey, i, nullableStringValue(c.Title), nullableStringValue(reference.NormalizeTitle(c.Title)),
			nullableStringValue(string(authorsJSON)), year, nullableStringValue(c.Venue),
			nullableStringValue(strings.ToLower(c.DOI)), nullableStringValue(c.Raw), c.GarbageScore,
		)
		if err != nil {
			return fmt.Errorf("inserting citation %d of %s: %w", i, citingKey, err)
		}
	}
	return nil
}

// CitedBy returns library papers whose retained citations match p by DOI
// or by normalized title. p itself is never returned.
func (d *DB) CitedBy(p reference.Paper, limit int) ([]reference.Paper, error) {
	doi := strings.ToLower(p.DOI)
	title := reference.NormalizeTitle(p.Title)
	if doi == "" && title == "" {
		return nil, nil
	}

	rows, err := d.db.Query(`
		SELECT `+selectPaperFields+`
		FROM papers
		WHERE paper_key IN (
			SELECT citing_key FROM citations
			WHERE (? != '' AND doi = ?) OR (? != '' AND norm_title = ?)
		)
		AND paper_key != ?
		ORDER BY year DESC, title
		LIMIT ?`, doi, doi, title, title, p.Key(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying cited-by for %s: %w", p.Key(), err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// CitationsOf returns the indexed citations of one paper in bibliography order.
func (d *DB) CitationsOf(key string) ([]reference.Citation, error) {
	rows, err := d.db.Query(`
		SELECT title, authors_json, year, venue, doi, raw, garbage_score
		FROM citations
		WHERE citing_key = ?
		ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("querying citations of %s: %w", key, err)
	}
	defer rows.Close()

	var cites []reference.Citation
	for rows.Next() {
		var c reference.Citation
		var title, authorsJSON, venue, doi, raw sql.NullString
		var year sql.NullInt64
		if err := rows.Scan(&title, &authorsJSON, &year, &venue, &doi, &raw, &c.GarbageScore); err != nil {
			return nil, err
		}
		c.Title = title.String
		c.Year = int(year.Int64)
		c.Venue = venue.String
		c.DOI = doi.String
		c.Raw = raw.String
		if authorsJSON.Valid {
			if err := json.Unmarshal([]byte(authorsJSON.String), &c.Authors); err != nil {
				return nil, fmt.Errorf("parsing citation authors for %s: %w", key, err)
			}
		}
		cites = append(cites, c)
	}
	return cites, rows.Err()
}

// CitationStats counts retained citations and their plausibility bands.
func (d *DB) CitationStats() (CitationStats, error) {
	stats := CitationStats{ByBand: map[citation.Band]int{}}

	rows, err := d.db.Query(`SELECT garbage_score, doi IS NOT NULL, citing_key FROM citations`)
	if err != nil {
		return stats, fmt.Errorf("querying citation stats: %w", err)
	}
	defer rows.Close()

	citing := map[string]bool{}
	sum := 0
	for rows.Next() {
		var score int
		var hasDOI bool
		var key string
		if err := rows.Scan(&score, &hasDOI, &key); err != nil {
			return stats, err
		}
		stats.Total++
		if hasDOI {
			stats.WithDOI++
		}
		stats.ByBand[citation.BandOf(score)]++
		citing[key] = true
		sum += score
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	stats.CitingKeys = len(citing)
	if stats.Total > 0 {
		stats.MeanScore = float64(sum) / float64(stats.Total)
	}
	return stats, nil
}
