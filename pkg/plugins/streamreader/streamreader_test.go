package streamreader

import (
	"context"
	"testing"

	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingSender struct {
	records []*element.Record
}

func (s *collectingSender) Send(ctx context.Context, record *element.Record) error {
	s.records = append(s.records, record)
	return nil
}

func TestStreamReader(t *testing.T) {
	r := New()
	require.NoError(t, r.Init(&plugin.TaskContext{Param: plugin.Param{
		"slice_record_count": 3,
		"column": []any{
			map[string]any{"value": "hello", "type": "string"},
			map[string]any{"value": 10, "type": "long", "incr": 5},
			map[string]any{"value": "true", "type": "bool"},
		},
	}}))

	sender := &collectingSender{}
	require.NoError(t, r.StartRead(context.Background(), sender))

	require.Len(t, sender.records, 3)
	assert.Equal(t, "[hello, 10, true]", sender.records[0].String())
	assert.Equal(t, "[hello, 20, true]", sender.records[2].String())
}

func TestStreamReaderRejectsBadColumns(t *testing.T) {
	err := New().Init(&plugin.TaskContext{Param: plugin.Param{"slice_record_count": 1}})
	assert.ErrorIs(t, err, utils.ErrBadRequest)

	err = New().Init(&plugin.TaskContext{Param: plugin.Param{
		"column": []any{map[string]any{"value": "x", "type": "string", "incr": 1}},
	}})
	assert.ErrorContains(t, err, "incr requires a long column")

	err = New().Init(&plugin.TaskContext{Param: plugin.Param{
		"column": []any{map[string]any{"value": "x", "type": "long"}},
	}})
	assert.ErrorIs(t, err, utils.ErrBadRequest)
}

func TestStreamReaderIsRegistered(t *testing.T) {
	_, err := plugin.Default.LoadReader(Name)
	assert.NoError(t, err)
}
