// Package storetest runs an in-process backend that speaks the /api/*
// contract, backed by an in-memory SQLite database. Tests point the remote
// store at Backend.URL.
package storetest

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"

	"annotate/internal/models"
)

const schema = `
CREATE TABLE datasets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE comments (
	dataset_id INTEGER,
	comment TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT ''
);
`

// Option tweaks the fake backend.
type Option func(*Backend)

// WithoutCategories makes /api/categories answer 404, like a backend that
// only implements the core contract.
func WithoutCategories() Option {
	return func(b *Backend) { b.noCategories = true }
}

// Backend is a running fake.
type Backend struct {
	URL string
	DB  *sql.DB

	noCategories bool

	mu      sync.Mutex
	updates []models.Comment
	failPut int
}

// New starts a fake backend and registers its shutdown with t.Cleanup.
func New(t testing.TB, opts ...Option) *Backend {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection would get its own :memory: database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	b := &Backend{DB: db}
	for _, opt := range opts {
		opt(b)
	}

	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(b.router())
	b.URL = srv.URL
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return b
}

// SeedDataset inserts a dataset with uncategorised comments and returns its ID.
func (b *Backend) SeedDataset(t testing.TB, name string, comments ...string) int64 {
	t.Helper()
	res, err := b.DB.Exec("INSERT INTO datasets (name) VALUES (?)", name)
	if err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	id, _ := res.LastInsertId()
	for _, c := range comments {
		if _, err := b.DB.Exec("INSERT INTO comments (dataset_id, comment, category) VALUES (?, ?, '')", id, c); err != nil {
			t.Fatalf("seed comment: %v", err)
		}
	}
	return id
}

// SetCategory categorises every comment of the dataset whose text equals comment.
func (b *Backend) SetCategory(t testing.TB, datasetID int64, comment, category string) {
	t.Helper()
	if _, err := b.DB.Exec("UPDATE comments SET category = ? WHERE dataset_id = ? AND comment = ?", category, datasetID, comment); err != nil {
		t.Fatalf("set category: %v", err)
	}
}

// Updates returns every PUT body received so far.
func (b *Backend) Updates() []models.Comment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Comment, len(b.updates))
	copy(out, b.updates)
	return out
}

// FailUpdates makes the next n PUT requests answer 500.
func (b *Backend) FailUpdates(n int) {
	b.mu.Lock()
	b.failPut = n
	b.mu.Unlock()
}

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	r.GET("/api/comments", b.getComments)
	r.GET("/api/comments/:dataset_id", b.getComments)
	r.PUT("/api/comments/:id", b.updateComment)
	r.POST("/api/split/:id", b.splitComment)
	r.GET("/api/categories", b.getCategories)
	r.GET("/api/datasets", b.getDatasets)
	r.POST("/api/dataset", b.createDataset)
	r.DELETE("/api/datasets/:dataset_id", b.deleteDataset)
	r.GET("/api/export", b.exportComments)
	return r
}

func (b *Backend) getComments(c *gin.Context) {
	query := `SELECT rowid, comment, category FROM comments WHERE comment != ''`
	var args []any
	if raw := c.Param("dataset_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		query += ` AND dataset_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY lower(category) DESC, lower(comment) ASC`

	rows, err := b.DB.Query(query, args...)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	// nil encodes as null, matching the reference server for empty datasets.
	var comments []models.Comment
	for rows.Next() {
		var cm models.Comment
		if err := rows.Scan(&cm.ID, &cm.Comment, &cm.Category); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		comments = append(comments, cm)
	}
	c.JSON(http.StatusOK, comments)
}

func (b *Backend) updateComment(c *gin.Context) {
	var cm models.Comment
	if err := json.NewDecoder(c.Request.Body).Decode(&cm); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	if b.failPut > 0 {
		b.failPut--
		b.mu.Unlock()
		c.String(http.StatusInternalServerError, "injected failure")
		return
	}
	b.updates = append(b.updates, cm)
	b.mu.Unlock()

	res, err := b.DB.Exec("UPDATE comments SET comment = ?, category = ? WHERE rowid = ?", cm.Comment, cm.Category, cm.ID)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.String(http.StatusNotFound, "comment not found")
		return
	}
	c.Status(http.StatusOK)
}

func (b *Backend) splitComment(c *gin.Context) {
	var cm models.Comment
	if err := json.NewDecoder(c.Request.Body).Decode(&cm); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	tx, err := b.DB.Begin()
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	var datasetID sql.NullInt64
	if err := tx.QueryRow("SELECT dataset_id FROM comments WHERE rowid = ?", cm.ID).Scan(&datasetID); err != nil {
		if err == sql.ErrNoRows {
			c.String(http.StatusNotFound, "comment not found")
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := tx.Exec("DELETE FROM comments WHERE rowid = ?", cm.ID); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	for _, line := range strings.Split(cm.Comment, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := tx.Exec("INSERT INTO comments (dataset_id, comment, category) VALUES (?, ?, ?)", datasetID, line, cm.Category); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
	}
	if err := tx.Commit(); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)
}

func (b *Backend) getCategories(c *gin.Context) {
	if b.noCategories {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	rows, err := b.DB.Query("SELECT DISTINCT category FROM comments ORDER BY category")
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		categories = append(categories, category)
	}
	c.JSON(http.StatusOK, categories)
}

func (b *Backend) getDatasets(c *gin.Context) {
	rows, err := b.DB.Query("SELECT id, name FROM datasets WHERE NOT deleted ORDER BY id DESC")
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	var datasets []models.Dataset
	for rows.Next() {
		var d models.Dataset
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		datasets = append(datasets, d)
	}
	c.JSON(http.StatusOK, datasets)
}

func (b *Backend) createDataset(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.String(http.StatusBadRequest, "Dataset name required")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()

	var values []string
	lower := strings.ToLower(fh.Filename)
	switch {
	case strings.HasSuffix(lower, ".json"):
		err = json.NewDecoder(bufio.NewReader(f)).Decode(&values)
	case strings.HasSuffix(lower, ".csv"):
		values, err = firstCSVRecord(bufio.NewReader(f))
	default:
		c.String(http.StatusBadRequest, "Unsupported file format")
		return
	}
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	tx, err := b.DB.Begin()
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()
	res, err := tx.Exec("INSERT INTO datasets (name) VALUES (?)", name)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	id, _ := res.LastInsertId()
	for _, v := range values {
		if _, err := tx.Exec("INSERT INTO comments (dataset_id, comment, category) VALUES (?, ?, '')", id, v); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
	}
	if err := tx.Commit(); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/?id=%d", id))
}

func (b *Backend) deleteDataset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("dataset_id"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if _, err := b.DB.Exec("UPDATE datasets SET deleted = TRUE WHERE id = ?", id); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)
}

func (b *Backend) exportComments(c *gin.Context) {
	rows, err := b.DB.Query("SELECT comment, category FROM comments")
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=comments_export.csv")
	w := csv.NewWriter(c.Writer)
	defer w.Flush()
	w.Write([]string{"comment", "category"})
	for rows.Next() {
		var comment, category string
		if err := rows.Scan(&comment, &category); err != nil {
			return
		}
		w.Write([]string{comment, category})
	}
}

func firstCSVRecord(r io.Reader) ([]string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %v", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}
