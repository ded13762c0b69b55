// Package streamwriter prints records to standard output, or discards
// them.
package streamwriter

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/srand/jolt/datasync/pkg/plugin"
)

const Name = "streamwriter"

type Config struct {
	Print          bool   `mapstructure:"print"`
	FieldDelimiter string `mapstructure:"field_delimiter"`
	NullFormat     string `mapstructure:"null_format"`
}

// Destination of printed records
var Stdout io.Writer = os.Stdout

type Writer struct {
	plugin.BaseTask
	config Config
	out    io.Writer
}

func New() plugin.WriterTask {
	return &Writer{}
}

func (w *Writer) Init(tc *plugin.TaskContext) error {
	w.BaseTask.Init(tc)

	w.config = Config{FieldDelimiter: "\t"}
	if err := tc.Param.Decode(&w.config); err != nil {
		return err
	}

	w.out = Stdout
	if !w.config.Print {
		w.out = io.Discard
	}
	return nil
}

// Discarded output can be repeated, printed output cannot.
func (w *Writer) SupportFailOver() bool {
	return !w.config.Print
}

func (w *Writer) StartWrite(ctx context.Context, receiver plugin.RecordReceiver) error {
	out := bufio.NewWriter(w.out)
	defer out.Flush()

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
			if c.IsNull() {
				fields = append(fields, w.config.NullFormat)
			} else {
				fields = append(fields, c.String())
			}
		}

		if _, err := out.WriteString(strings.Join(fields, w.config.FieldDelimiter) + "\n"); err != nil {
			w.TC.Collector.CollectDirtyRecord(record, err)
		}
		count++
	}

	w.Logger().Debugf("end - streamwriter - records: %d", count)
	return out.Flush()
}

func init() {
	plugin.RegisterWriter(Name, New)
}
