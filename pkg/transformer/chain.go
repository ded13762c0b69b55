package transformer

import (
	"context"
	"fmt"
	"time"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
)

type stage struct {
	name        string
	transformer Transformer
	columnIndex int
	args        []string
}

// An ordered list of transformers applied to every record a reader sends.
// Failures are reported as dirty records and filtered records are counted.
// Neither stops the task.
type Chain struct {
	stages    []stage
	comm      *communication.Communication
	collector plugin.Collector
}

// Resolves every configured stage in registry.
func NewChain(configs []Config, registry *Registry, comm *communication.Communication, collector plugin.Collector) (*Chain, error) {
	if registry == nil {
		registry = Default
	}

	chain := &Chain{comm: comm, collector: collector}
	for _, cfg := range configs {
		t, err := registry.Get(cfg.Name)
		if err != nil {
			return nil, err
		}
		if cfg.ColumnIndex < 0 {
			return nil, fmt.Errorf("transformer %s: negative column index %d", cfg.Name, cfg.ColumnIndex)
		}
		chain.stages = append(chain.stages, stage{
			name:        cfg.Name,
			transformer: t,
			columnIndex: cfg.ColumnIndex,
			args:        cfg.Args,
		})
	}
	return chain, nil
}

func (c *Chain) Len() int {
	return len(c.stages)
}

// Runs the record through all stages. Returns false if the record was
// filtered out or a stage failed.
func (c *Chain) Apply(record *element.Record) (*element.Record, bool) {
	start := time.Now()
	defer func() {
		c.comm.IncreaseCounter(communication.TransformerUsedTime, int64(time.Since(start)))
	}()

	for _, s := range c.stages {
		out, err := c.evaluate(s, record)
		if err != nil {
			c.comm.IncreaseCounter(communication.TransformerFailedRecords, 1)
			if c.collector != nil {
				c.collector.CollectDirtyRecord(record, fmt.Errorf("transformer %s: %w", s.name, err))
			}
			return nil, false
		}
		if out == nil {
			c.comm.IncreaseCounter(communication.TransformerFilterRecords, 1)
			return nil, false
		}
		record = out
	}

	c.comm.IncreaseCounter(communication.TransformerSucceedRecords, 1)
	return record, true
}

// Transformers are user supplied; a panicking one only fails the record.
func (c *Chain) evaluate(s stage, record *element.Record) (out *element.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.transformer.Evaluate(record, s.columnIndex, s.args)
}

// Returns a sender that transforms records before handing them to next.
// Without stages next is returned as is.
func (c *Chain) Wrap(next plugin.RecordSender) plugin.RecordSender {
	if c == nil || len(c.stages) == 0 {
		return next
	}
	return &sender{chain: c, next: next}
}

type sender struct {
	chain *Chain
	next  plugin.RecordSender
}

func (s *sender) Send(ctx context.Context, record *element.Record) error {
	record, ok := s.chain.Apply(record)
	if !ok {
		return nil
	}
	return s.next.Send(ctx, record)
}
