// Package storage persists processed papers and articles as JSONL (the
// source of truth) and indexes them in an ephemeral SQLite database.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/paperlib/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
// Papers carry their full citation lists, so lines can be long.
const MaxJSONLLineCapacity = 64 * 1024 * 1024

func readJSONL[T any](path, what string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s file: %w", what, err)
	}
	defer f.Close()

	var items []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s file: %w", what, err)
	}
	return items, nil
}

func appendJSONL[T any](path, what string, item T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", what, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s file for append: %w", what, err)
	}
	defer f.Close()

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", what, err)
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", what, err)
	}
	return nil
}

// writeJSONL replaces path atomically via a temp file in the same directory.
func writeJSONL[T any](path, what string, items []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", what, err)
	}
	tmpFile, err := os.CreateTemp(dir, ".tmp-*.jsonl")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmpFile)
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			tmpFile.Close()
			return fmt.Errorf("encoding %s %d: %w", what, i, err)
		}
		w.Write(data)
		if err := w.WriteByte('\n'); err != nil {
			tmpFile.Close()
			return fmt.Errorf("writing %s %d: %w", what, i, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("flushing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// ReadAll reads all papers from a JSONL file. A missing file is empty.
func ReadAll(path string) ([]reference.Paper, error) {
	return readJSONL[reference.Paper](path, "library")
}

// Append adds a paper to the end of a JSONL file.
func Append(path string, p reference.Paper) error {
	return appendJSONL(path, "paper", p)
}

// WriteAll replaces the JSONL file with papers.
func WriteAll(path string, papers []reference.Paper) error {
	return writeJSONL(path, "paper", papers)
}

// FindByKey returns the index of the paper with the given Key.
func FindByKey(papers []reference.Paper, key string) (int, bool) {
	for i, p := range papers {
		if p.Key() == key {
			return i, true
		}
	}
	return -1, false
}

// Upsert replaces the entry describing the same work (see
// reference.SameWork) or appends p, and rewrites the file. It reports
// whether an existing entry was replaced.
func Upsert(path string, p reference.Paper) (bool, error) {
	papers, err := ReadAll(path)
	if err != nil {
		return false, err
	}
	for i := range papers {
		if reference.SameWork(papers[i], p) {
			papers[i] = p
			return true, WriteAll(path, papers)
		}
	}
	return false, appendJSONL(path, "paper", p)
}

// ReadAllArticles reads all articles from a JSONL file.
func ReadAllArticles(path string) ([]reference.Article, error) {
	return readJSONL[reference.Article](path, "articles")
}

// WriteAllArticles replaces the JSONL file with articles.
func WriteAllArticles(path string, articles []reference.Article) error {
	return writeJSONL(path, "article", articles)
}

// UpsertArticle replaces the article with the same URL or appends it.
func UpsertArticle(path string, a reference.Article) (bool, error) {
	articles, err := ReadAllArticles(path)
	if err != nil {
		return false, err
	}
	for i := range articles {
		if articles[i].URL == a.URL {
			articles[i] = a
			return true, WriteAllArticles(path, articles)
		}
	}
	return false, appendJSONL(path, "article", a)
}
