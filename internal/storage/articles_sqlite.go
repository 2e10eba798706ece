package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/reference"
)

const selectArticleFields = `url, title, authors_json, publisher, published, note_path, processed_at`

// RebuildArticlesFromJSONL clears the article tables and rebuilds them.
func (d *DB) RebuildArticlesFromJSONL(jsonlPath string) (int, error) {
	articles, err := ReadAllArticles(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading articles JSONL: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM articles"); err != nil {
		return 0, fmt.Errorf("clearing articles table: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM articles_fts"); err != nil {
		return 0, fmt.Errorf("clearing articles_fts table: %w", err)
	}

	for _, a := range articles {
		if err := insertArticle(tx, a); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(articles), nil
}

// UpsertArticle replaces one article in the index.
func (d *DB) UpsertArticle(a reference.Article) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM articles_fts WHERE url = ?", a.URL); err != nil {
		return fmt.Errorf("deleting fts for %s: %w", a.URL, err)
	}
	if err := insertArticle(tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func insertArticle(tx *sql.Tx, a reference.Article) error {
	authorsJSON, err := json.Marshal(a.Authors)
	if err != nil {
		return fmt.Errorf("marshaling authors for %s: %w", a.URL, err)
	}
	var published sql.NullString
	if a.PublishedDate != nil {
		published = nullableTime(*a.PublishedDate)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO articles (`+selectArticleFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.URL, a.Title, string(authorsJSON), nullableStringValue(a.Publisher),
		published, nullableStringValue(a.NotePath), nullableTime(a.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting article %s: %w", a.URL, err)
	}

	_, err = tx.Exec(`
		INSERT INTO articles_fts (url, title, authors_text, publisher)
		VALUES (?, ?, ?, ?)`,
		a.URL, a.Title, strings.Join(a.Authors, ", "), a.Publisher)
	if err != nil {
		return fmt.Errorf("inserting fts for %s: %w", a.URL, err)
	}
	return nil
}

// SearchArticles performs a full-text search over article titles, authors
// and publishers.
func (d *DB) SearchArticles(query string, limit int) ([]reference.Article, error) {
	rows, err := d.db.Query(`
		SELECT `+selectArticleFields+`
		FROM articles
		WHERE url IN (SELECT url FROM articles_fts WHERE articles_fts MATCH ?)
		ORDER BY published DESC, title
		LIMIT ?`, prepareFTSQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching articles: %w", err)
	}
	defer rows.Close()

	var articles []reference.Article
	for rows.Next() {
		var a reference.Article
		var authorsJSON string
		var publisher, published, notePath, processedAt sql.NullString
		if err := rows.Scan(&a.URL, &a.Title, &authorsJSON, &publisher, &published, &notePath, &processedAt); err != nil {
			return nil, err
		}
		a.Publisher = publisher.String
		a.NotePath = notePath.String
		a.Source = reference.SourceWeb
		if published.Valid {
			if t, err := time.Parse(time.RFC3339, published.String); err == nil {
				a.PublishedDate = &t
			}
		}
		if processedAt.Valid {
			if t, err := time.Parse(time.RFC3339, processedAt.String); err == nil {
				a.ProcessedAt = t
			}
		}
		if err := json.Unmarshal([]byte(authorsJSON), &a.Authors); err != nil {
			return nil, fmt.Errorf("parsing authors JSON for %s: %w", a.URL, err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CountArticles returns the total number of articles.
func (d *DB) CountArticles() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count)
	return count, err
}
