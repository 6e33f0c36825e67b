// Package export materialises a question collection into a SQLite database
// for ad-hoc querying.
package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lherron/qbank/internal/assets"
	"github.com/lherron/qbank/internal/canon"
	"github.com/lherron/qbank/internal/collection"
	"github.com/lherron/qbank/internal/db"
	"github.com/lherron/qbank/internal/domain"
	"github.com/lherron/qbank/internal/stats"
	"go.uber.org/zap"
)

// Result summarises an export.
type Result struct {
	Path       string   `json:"path" yaml:"path"`
	Questions  int      `json:"questions" yaml:"questions"`
	Diseases   int      `json:"diseases" yaml:"diseases"`
	Metadata   int      `json:"metadata_keys" yaml:"metadata_keys"`
	Migrations []string `json:"migrations" yaml:"migrations"`
}

// ToSQLite writes c into a fresh SQLite database at dbPath. The database is
// built in a temporary file next to dbPath and renamed over it once complete,
// so an existing file is replaced only by a finished export.
func ToSQLite(c *collection.Collection, dbPath string, log *zap.Logger) (res *Result, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dbPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp database: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	database, err := db.Open(tmpPath)
	if err != nil {
		return nil, err
	}

	res = &Result{Path: dbPath}
	if _, err = database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if res.Migrations, err = schemaReady(database); err != nil {
		database.Close()
		return nil, err
	}

	if err = write(database, c, res); err != nil {
		database.Close()
		return nil, err
	}
	if err = database.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database: %w", err)
	}
	if err = os.Rename(tmpPath, dbPath); err != nil {
		return nil, fmt.Errorf("failed to move database into place: %w", err)
	}

	log.Info("exported collection",
		zap.String("path", dbPath),
		zap.Int("questions", res.Questions),
		zap.Int("diseases", res.Diseases),
	)
	return res, nil
}

// schemaReady returns the applied migrations, or an error naming any that
// are still pending.
func schemaReady(database *db.DB) ([]string, error) {
	applied, pending, err := database.MigrationStatus()
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("schema incomplete, pending migrations: %s", strings.Join(pending, ", "))
	}
	return applied, nil
}

func write(database *db.DB, c *collection.Collection, res *Result) error {
	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range canon.SortedKeys(c.Metadata) {
		if _, err := tx.Exec(`INSERT INTO collection_metadata (key, value) VALUES (?, ?)`,
			key, string(c.Metadata[key])); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
		res.Metadata++
	}

	s := stats.Compute(c.Questions)
	for _, id := range s.Diseases() {
		if _, err := tx.Exec(`INSERT INTO diseases (disease_id, label_en, label_lt, question_count) VALUES (?, ?, ?, ?)`,
			id, c.DiseaseLabel(id, "en"), c.DiseaseLabel(id, "lt"), s.ByDisease[id]); err != nil {
			return fmt.Errorf("failed to insert disease %q: %w", id, err)
		}
		res.Diseases++
	}

	stmt, err := tx.Prepare(`
		INSERT INTO questions (
			id, position, disease_id, topic, difficulty, source_slide,
			en_assertion, en_reason, en_answer, en_explanation,
			lt_assertion, lt_reason, lt_answer, lt_explanation,
			image, image_mime, extra
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range c.Questions {
		args, err := questionArgs(i, &c.Questions[i])
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert question %d: %w", c.Questions[i].ID, err)
		}
		res.Questions++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

func questionArgs(position int, q *domain.QuestionRecord) ([]interface{}, error) {
	var difficulty sql.NullString
	if q.Difficulty != nil {
		difficulty = sql.NullString{String: string(*q.Difficulty), Valid: true}
	}

	var image, mime sql.NullString
	if q.Image != nil {
		image = sql.NullString{String: *q.Image, Valid: true}
		if q.HasImage() {
			mime = sql.NullString{String: assets.DetectMimeType(*q.Image), Valid: true}
		}
	}

	var extra sql.NullString
	if len(q.Extra) > 0 {
		data, err := canon.Marshal(q.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extra keys of question %d: %w", q.ID, err)
		}
		extra = sql.NullString{String: string(data), Valid: true}
	}

	args := []interface{}{q.ID, position, q.DiseaseID, q.Topic, difficulty, q.SourceSlide}
	args = append(args, contentArgs(q.EN)...)
	args = append(args, contentArgs(q.LT)...)
	args = append(args, image, mime, extra)
	return args, nil
}

func contentArgs(c *domain.Content) []interface{} {
	if c == nil {
		return []interface{}{nil, nil, nil, nil}
	}
	return []interface{}{c.Assertion, c.Reason, c.Answer, c.Explanation}
}
