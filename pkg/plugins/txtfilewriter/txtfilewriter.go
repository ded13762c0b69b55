// Package txtfilewriter writes records as delimited text files, one file
// per task.
package txtfilewriter

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/utils"
)

const Name = "txtfilewriter"

const (
	WriteModeTruncate    = "truncate"
	WriteModeAppend      = "append"
	WriteModeNonConflict = "nonConflict"
)

type Config struct {
	Path           string   `mapstructure:"path"`
	FileName       string   `mapstructure:"file_name"`
	WriteMode      string   `mapstructure:"write_mode"`
	FileFormat     string   `mapstructure:"file_format"`
	FieldDelimiter string   `mapstructure:"field_delimiter"`
	NullFormat     string   `mapstructure:"null_format"`
	DateFormat     string   `mapstructure:"date_format"`
	Compress       string   `mapstructure:"compress"`
	Header         []string `mapstructure:"header"`
}

type Writer struct {
	plugin.BaseTask
	config   Config
	compress utils.Compression
	target   string
}

func New() plugin.WriterTask {
	return &Writer{}
}

func (w *Writer) Init(tc *plugin.TaskContext) error {
	w.BaseTask.Init(tc)

	w.config = Config{
		WriteMode:      WriteModeAppend,
		FileFormat:     "txt",
		FieldDelimiter: ",",
		DateFormat:     element.DateLayout,
	}
	if err := tc.Param.Decode(&w.config); err != nil {
		return err
	}

	if w.config.Path == "" || w.config.FileName == "" {
		return fmt.Errorf("%w: path and file_name are required", utils.ErrBadRequest)
	}
	if tc.Fs == nil {
		return fmt.Errorf("%w: no filesystem", utils.ErrBadRequest)
	}

	switch strings.ToLower(w.config.WriteMode) {
	case WriteModeTruncate, "overwrite":
		w.config.WriteMode = WriteModeTruncate
	case WriteModeAppend:
		w.config.WriteMode = WriteModeAppend
	case strings.ToLower(WriteModeNonConflict):
		w.config.WriteMode = WriteModeNonConflict
	default:
		return fmt.Errorf("%w: write_mode must be truncate, append or nonConflict, not %q", utils.ErrBadRequest, w.config.WriteMode)
	}

	switch w.config.FileFormat {
	case "txt", "csv":
	default:
		return fmt.Errorf("%w: unsupported file_format %q", utils.ErrBadRequest, w.config.FileFormat)
	}

	if w.config.FileFormat == "csv" && utf8.RuneCountInString(w.config.FieldDelimiter) != 1 {
		return fmt.Errorf("%w: csv needs a single character field_delimiter", utils.ErrBadRequest)
	}

	compress, err := utils.ParseCompression(w.config.Compress)
	if err != nil {
		return err
	}
	w.compress = compress

	// One file per task so that concurrent tasks never share a file.
	name := fmt.Sprintf("%s__%d.%s%s", w.config.FileName, tc.TaskID, w.config.FileFormat, compress.Suffix())
	w.target = filepath.Join(w.config.Path, name)
	return nil
}

// Only a truncating writer produces the same file when repeated.
func (w *Writer) SupportFailOver() bool {
	return w.config.WriteMode == WriteModeTruncate
}

func (w *Writer) Target() string {
	return w.target
}

func (w *Writer) Prepare(ctx context.Context) error {
	fs := w.TC.Fs

	if info, err := fs.Stat(w.config.Path); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s is a file, not a directory", utils.ErrBadRequest, w.config.Path)
	}
	if err := fs.MkdirAll(w.config.Path, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.config.Path, err)
	}

	exists, err := afero.Exists(fs, w.target)
	if err != nil {
		return err
	}

	switch w.config.WriteMode {
	case WriteModeTruncate:
		if exists {
			w.Logger().Infof("del - txtfilewriter - file: %s", w.target)
			if err := fs.Remove(w.target); err != nil {
				return fmt.Errorf("failed to remove %s: %w", w.target, err)
			}
		}
	case WriteModeNonConflict:
		if exists {
			return fmt.Errorf("%w: %s", utils.ErrExists, w.target)
		}
	}
	return nil
}

func (w *Writer) StartWrite(ctx context.Context, receiver plugin.RecordReceiver) (err error) {
	flags := os.O_CREATE | os.O_WRONLY
	if w.config.WriteMode == WriteModeAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := w.TC.Fs.OpenFile(w.target, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.target, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	compressed, err := w.compress.NewWriter(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := compressed.Close(); err == nil {
			err = cerr
		}
	}()

	buffered := bufio.NewWriter(compressed)
	defer func() {
		if ferr := buffered.Flush(); err == nil {
			err = ferr
		}
	}()

	w.Logger().Infof("new - txtfilewriter - file: %s, mode: %s", w.target, w.config.WriteMode)

	line := w.lineWriter(buffered)

	if len(w.config.Header) > 0 {
		if err := line(w.config.Header); err != nil {
			return err
		}
	}

	fields := []string{}
	count := 0
	for {
		record, err := receiver.Receive(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		fields = fields[:0]
		for _, c := range record.Columns {
			fields = append(fields, w.format(c))
		}

		if err := line(fields); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.target, err)
		}
		count++
	}

	w.Logger().Debugf("end - txtfilewriter - file: %s, records: %d", w.target, count)
	return nil
}

func (w *Writer) lineWriter(out io.Writer) func([]string) error {
	if w.config.FileFormat == "csv" {
		cw := csv.NewWriter(out)
		cw.Comma, _ = utf8.DecodeRuneInString(w.config.FieldDelimiter)
		return func(fields []string) error {
			if err := cw.Write(fields); err != nil {
				return err
			}
			cw.Flush()
			return cw.Error()
		}
	}

	return func(fields []string) error {
		_, err := io.WriteString(out, strings.Join(fields, w.config.FieldDelimiter)+"\n")
		return err
	}
}

func (w *Writer) format(c element.Column) string {
	if c.IsNull() {
		return w.config.NullFormat
	}
	if c.Type == element.TypeDate && w.config.DateFormat != "" {
		if ts, ok := c.Value.(interface{ Format(string) string }); ok {
			return ts.Format(w.config.DateFormat)
		}
	}
	return c.String()
}

func init() {
	plugin.RegisterWriter(Name, New)
}
