// Package streamreader generates synthetic records, mostly useful for
// testing pipelines and measuring throughput.
package streamreader

import (
	"context"
	"fmt"
	"time"

	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/utils"
)

const Name = "streamreader"

type ColumnConfig struct {
	// Constant value, converted to Type.
	Value any    `mapstructure:"value"`
	Type  string `mapstructure:"type"`

	// Long columns with Incr set count from Value in steps of Incr.
	Incr int64 `mapstructure:"incr"`
}

type Config struct {
	Column           []ColumnConfig `mapstructure:"column"`
	SliceRecordCount int64          `mapstructure:"slice_record_count"`

	// Pause after each record.
	Interval time.Duration `mapstructure:"interval"`
}

type column struct {
	base element.Column
	incr int64
}

type Reader struct {
	plugin.BaseTask
	config  Config
	columns []column
}

func New() plugin.ReaderTask {
	return &Reader{}
}

func (r *Reader) Init(tc *plugin.TaskContext) error {
	r.BaseTask.Init(tc)

	if err := tc.Param.Decode(&r.config); err != nil {
		return err
	}
	if len(r.config.Column) == 0 {
		return fmt.Errorf("%w: column is required", utils.ErrBadRequest)
	}
	if r.config.SliceRecordCount < 0 {
		return fmt.Errorf("%w: slice_record_count must not be negative", utils.ErrBadRequest)
	}

	r.columns = r.columns[:0]
	for i, cc := range r.config.Column {
		t, err := element.ParseType(cc.Type)
		if err != nil {
			return fmt.Errorf("%w: column %d: %v", utils.ErrBadRequest, i, err)
		}
		if cc.Incr != 0 && t != element.TypeLong {
			return fmt.Errorf("%w: column %d: incr requires a long column", utils.ErrBadRequest, i)
		}
		base, err := element.Convert(cc.Value, t)
		if err != nil {
			return fmt.Errorf("%w: column %d: %v", utils.ErrBadRequest, i, err)
		}
		r.columns = append(r.columns, column{base: base, incr: cc.Incr})
	}

	return nil
}

func (r *Reader) record(seq int64) *element.Record {
	record := element.NewRecord()
	for _, c := range r.columns {
		if c.incr != 0 {
			start, _ := c.base.Value.(int64)
			record.Add(element.NewLongColumn(start + seq*c.incr))
			continue
		}
		record.Add(c.base)
	}
	return record
}

func (r *Reader) StartRead(ctx context.Context, sender plugin.RecordSender) error {
	r.Logger().Debugf("run - streamreader - records: %d", r.config.SliceRecordCount)

	for seq := int64(0); seq < r.config.SliceRecordCount; seq++ {
		if err := sender.Send(ctx, r.record(seq)); err != nil {
			return err
		}

		if r.config.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.Interval):
			}
		}
	}

	return nil
}

func init() {
	plugin.RegisterReader(Name, New)
}
