// Package sqlitewriter inserts records into a SQLite table. Each attempt
// writes inside a single transaction, so a failed attempt leaves no rows
// behind and can be repeated.
package sqlitewriter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/utils"
)

const Name = "sqlitewriter"

type Config struct {
	// Database file, or any DSN accepted by go-sqlite3.
	Database string   `mapstructure:"database"`
	Table    string   `mapstructure:"table"`
	Column   []string `mapstructure:"column"`

	// Statements executed before writing, e.g. CREATE TABLE.
	PreSQL []string `mapstructure:"pre_sql"`
	// Statements executed after all rows have been committed.
	PostSQL []string `mapstructure:"post_sql"`

	// insert or replace
	WriteMode string `mapstructure:"write_mode"`
}

type Writer struct {
	plugin.BaseTask
	config Config
	db     *sql.DB
}

func New() plugin.WriterTask {
	return &Writer{}
}

func (w *Writer) Init(tc *plugin.TaskContext) error {
	w.BaseTask.Init(tc)

	w.config = Config{WriteMode: "insert"}
	if err := tc.Param.Decode(&w.config); err != nil {
		return err
	}

	if w.config.Database == "" || w.config.Table == "" || len(w.config.Column) == 0 {
		return fmt.Errorf("%w: database, table and column are required", utils.ErrBadRequest)
	}

	switch strings.ToLower(w.config.WriteMode) {
	case "insert", "replace":
	default:
		return fmt.Errorf("%w: write_mode must be insert or replace, not %q", utils.ErrBadRequest, w.config.WriteMode)
	}

	return nil
}

func (w *Writer) SupportFailOver() bool {
	return true
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (w *Writer) statement() string {
	columns := make([]string, len(w.config.Column))
	for i, c := range w.config.Column {
		columns[i] = quote(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	verb := "INSERT"
	if strings.EqualFold(w.config.WriteMode, "replace") {
		verb = "INSERT OR REPLACE"
	}

	return fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, quote(w.config.Table), strings.Join(columns, ", "), placeholders)
}

func (w *Writer) Prepare(ctx context.Context) error {
	db, err := sql.Open("sqlite3", w.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	w.db = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range w.config.PreSQL {
		w.Logger().Debugf("sql - sqlitewriter - pre: %s", stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pre_sql %q: %w", stmt, err)
		}
	}
	return nil
}

func (w *Writer) StartWrite(ctx context.Context, receiver plugin.RecordReceiver) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, w.statement())
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(w.config.Column))
	count := 0

	for {
		record, err := receiver.Receive(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if record.Len() != len(args) {
			w.TC.Collector.CollectDirtyRecord(record,
				fmt.Errorf("record has %d columns, table has %d", record.Len(), len(args)))
			continue
		}

		for i, c := range record.Columns {
			args[i] = value(c)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			w.TC.Collector.CollectDirtyRecord(record, err)
			continue
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	w.Logger().Debugf("end - sqlitewriter - table: %s, rows: %d", w.config.Table, count)
	return nil
}

func value(c element.Column) any {
	if c.IsNull() {
		return nil
	}
	return c.Value
}

func (w *Writer) Post(ctx context.Context) error {
	for _, stmt := range w.config.PostSQL {
		w.Logger().Debugf("sql - sqlitewriter - post: %s", stmt)
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("post_sql %q: %w", stmt, err)
		}
	}
	return nil
}

func (w *Writer) Destroy() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func init() {
	plugin.RegisterWriter(Name, New)
}
