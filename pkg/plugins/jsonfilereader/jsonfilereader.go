// Package jsonfilereader reads JSON lines files. Each line becomes one
// record whose columns are picked from the document by path.
package jsonfilereader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/utils"
)

const Name = "jsonfilereader"

// Lines longer than this fail the task.
const maxLineSize = 16 * 1024 * 1024

type ColumnConfig struct {
	// Path into the document, e.g. "$.user.name". Mutually exclusive with
	// Value.
	Index string `mapstructure:"index"`

	// Constant value.
	Value *string `mapstructure:"value"`

	Type string `mapstructure:"type"`

	// Go time layout for date columns.
	Format string `mapstructure:"format"`
}

type Config struct {
	// File names or glob patterns.
	Path     []string       `mapstructure:"path"`
	Column   []ColumnConfig `mapstructure:"column"`
	Compress string         `mapstructure:"compress"`
}

type column struct {
	path   path
	value  *string
	typ    element.Type
	format string
}

type Reader struct {
	plugin.BaseTask
	config   Config
	columns  []column
	compress utils.Compression
	files    []string
}

func New() plugin.ReaderTask {
	return &Reader{}
}

func (r *Reader) Init(tc *plugin.TaskContext) error {
	r.BaseTask.Init(tc)

	if err := tc.Param.Decode(&r.config); err != nil {
		return err
	}
	if len(r.config.Path) == 0 {
		return fmt.Errorf("%w: path is required", utils.ErrBadRequest)
	}
	if tc.Fs == nil {
		return fmt.Errorf("%w: no filesystem", utils.ErrBadRequest)
	}

	compress, err := utils.ParseCompression(r.config.Compress)
	if err != nil {
		return err
	}
	r.compress = compress

	r.columns = nil
	for i, cc := range r.config.Column {
		if cc.Index == "" && cc.Value == nil {
			return fmt.Errorf("%w: column %d needs index or value", utils.ErrBadRequest, i)
		}
		if cc.Index != "" && cc.Value != nil {
			return fmt.Errorf("%w: column %d has both index and value", utils.ErrBadRequest, i)
		}

		t, err := element.ParseType(cc.Type)
		if err != nil {
			return fmt.Errorf("%w: column %d: %v", utils.ErrBadRequest, i, err)
		}

		c := column{value: cc.Value, typ: t, format: cc.Format}
		if cc.Index != "" {
			if c.path, err = compilePath(cc.Index); err != nil {
				return fmt.Errorf("%w: column %d: %v", utils.ErrBadRequest, i, err)
			}
		}
		r.columns = append(r.columns, c)
	}

	return nil
}

// Expands the configured paths. Fails if nothing matches.
func (r *Reader) Prepare(ctx context.Context) error {
	r.files = nil
	for _, pattern := range r.config.Path {
		matches, err := afero.Glob(r.TC.Fs, pattern)
		if err != nil {
			return fmt.Errorf("%w: bad path %q: %v", utils.ErrBadRequest, pattern, err)
		}
		r.files = append(r.files, matches...)
	}

	slices.Sort(r.files)
	r.files = slices.Compact(r.files)

	if len(r.files) == 0 {
		return fmt.Errorf("%w: no file matches %s", utils.ErrNotFound, strings.Join(r.config.Path, ", "))
	}

	r.Logger().Infof("new - jsonfilereader - files: %d", len(r.files))
	return nil
}

func (r *Reader) StartRead(ctx context.Context, sender plugin.RecordSender) error {
	for _, file := range r.files {
		if err := r.readFile(ctx, file, sender); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readFile(ctx context.Context, name string, sender plugin.RecordSender) error {
	r.Logger().Debugf("run - jsonfilereader - file: %s", name)

	file, err := r.TC.Fs.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()

	input, err := r.compress.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer input.Close()

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := r.parse(line)
		if err != nil {
			r.TC.Collector.CollectDirtyRecord(element.NewRecord(element.NewStringColumn(string(line))), err)
			continue
		}

		if err := sender.Send(ctx, record); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

func (r *Reader) parse(line []byte) (*element.Record, error) {
	// Without a column spec the whole line is passed on.
	if len(r.columns) == 0 {
		return element.NewRecord(element.NewStringColumn(string(line))), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(line))
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	record := element.NewRecord()
	for _, c := range r.columns {
		var raw any
		if c.value != nil {
			raw = *c.value
		} else {
			raw = c.path.lookup(doc)
		}

		col, err := r.convert(raw, c)
		if err != nil {
			return nil, err
		}
		record.Add(col)
	}
	return record, nil
}

func (r *Reader) convert(raw any, c column) (element.Column, error) {
	switch v := raw.(type) {
	case json.Number:
		raw = v.String()
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return element.Column{}, err
		}
		raw = string(data)
	}

	if c.typ == element.TypeDate && c.format != "" {
		if s, ok := raw.(string); ok {
			ts, err := time.ParseInLocation(c.format, s, time.Local)
			if err != nil {
				return element.Column{}, fmt.Errorf("cannot parse %q as %q", s, c.format)
			}
			return element.NewDateColumn(ts), nil
		}
	}

	return element.Convert(raw, c.typ)
}

func init() {
	plugin.RegisterReader(Name, New)
}
