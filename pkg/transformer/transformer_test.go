package transformer

import (
	"context"
	"errors"
	"testing"

	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *element.Record {
	return element.NewRecord(element.NewStringColumn(s))
}

func eval(t *testing.T, name string, record *element.Record, args ...string) (*element.Record, error) {
	tr, err := Default.Get(name)
	require.NoError(t, err)
	return tr.Evaluate(record, 0, args)
}

func TestBuiltinsRegistered(t *testing.T) {
	assert.Equal(t, []string{"dx_filter", "dx_pad", "dx_replace", "dx_substr"}, Default.Names())
	_, err := Default.Get("dx_upper")
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.ErrorIs(t, Default.Register("dx_pad", nil), utils.ErrExists)
}

func TestSubstr(t *testing.T) {
	out, err := eval(t, "dx_substr", str("hello world"), "6", "5")
	require.NoError(t, err)
	assert.Equal(t, "world", out.Get(0).String())

	out, err = eval(t, "dx_substr", str("abc"), "1", "100")
	require.NoError(t, err)
	assert.Equal(t, "bc", out.Get(0).String())

	_, err = eval(t, "dx_substr", str("abc"), "x", "1")
	assert.Error(t, err)
}

func TestPad(t *testing.T) {
	out, err := eval(t, "dx_pad", str("7"), "l", "3", "0")
	require.NoError(t, err)
	assert.Equal(t, "007", out.Get(0).String())

	out, err = eval(t, "dx_pad", str("ab"), "r", "5", "xy")
	require.NoError(t, err)
	assert.Equal(t, "abxyx", out.Get(0).String())

	out, err = eval(t, "dx_pad", str("abcdef"), "l", "3", "0")
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Get(0).String())

	_, err = eval(t, "dx_pad", str("a"), "m", "3", "0")
	assert.Error(t, err)
}

func TestReplace(t *testing.T) {
	out, err := eval(t, "dx_replace", str("13812345678"), "3", "4", "****")
	require.NoError(t, err)
	assert.Equal(t, "138****5678", out.Get(0).String())

	_, err = eval(t, "dx_replace", str("abc"), "10", "1", "x")
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	out, err := eval(t, "dx_filter", str("error: disk"), "like", "error")
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = eval(t, "dx_filter", str("ok"), "like", "error")
	require.NoError(t, err)
	assert.NotNil(t, out)

	out, err = eval(t, "dx_filter", element.NewRecord(element.NewLongColumn(10)), ">", "9")
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = eval(t, "dx_filter", element.NewRecord(element.NewLongColumn(10)), "<", "9")
	require.NoError(t, err)
	assert.NotNil(t, out)

	_, err = eval(t, "dx_filter", str("a"), "~", "a")
	assert.Error(t, err)
}

type recordingSender struct {
	records []*element.Record
}

func (s *recordingSender) Send(_ context.Context, record *element.Record) error {
	s.records = append(s.records, record)
	return nil
}

type recordingCollector struct {
	errs []error
}

func (c *recordingCollector) CollectDirtyRecord(_ *element.Record, err error) {
	c.errs = append(c.errs, err)
}

func TestChain(t *testing.T) {
	comm := communication.New()
	collector := &recordingCollector{}

	registry := NewRegistry()
	require.NoError(t, registry.Register("fail_on_x", TransformerFunc(func(r *element.Record, i int, _ []string) (*element.Record, error) {
		if r.Get(i).String() == "x" {
			return nil, errors.New("x is not allowed")
		}
		return r, nil
	})))
	require.NoError(t, registry.Register("panic_on_p", TransformerFunc(func(r *element.Record, i int, _ []string) (*element.Record, error) {
		if r.Get(i).String() == "p" {
			panic("boom")
		}
		return r, nil
	})))
	require.NoError(t, registry.Register("dx_filter", TransformerFunc(filter)))
	require.NoError(t, registry.Register("dx_pad", TransformerFunc(pad)))

	chain, err := NewChain([]Config{
		{Name: "fail_on_x"},
		{Name: "panic_on_p"},
		{Name: "dx_filter", Args: []string{"=", "skip"}},
		{Name: "dx_pad", Args: []string{"l", "4", "_"}},
	}, registry, comm, collector)
	require.NoError(t, err)
	assert.Equal(t, 4, chain.Len())

	next := &recordingSender{}
	sender := chain.Wrap(next)
	ctx := context.Background()

	for _, value := range []string{"a", "x", "skip", "p", "bb"} {
		require.NoError(t, sender.Send(ctx, str(value)))
	}

	require.Len(t, next.records, 2)
	assert.Equal(t, "___a", next.records[0].Get(0).String())
	assert.Equal(t, "__bb", next.records[1].Get(0).String())

	assert.Equal(t, int64(2), comm.Counter(communication.TransformerSucceedRecords))
	assert.Equal(t, int64(2), comm.Counter(communication.TransformerFailedRecords))
	assert.Equal(t, int64(1), comm.Counter(communication.TransformerFilterRecords))
	assert.Len(t, collector.errs, 2)
	assert.ErrorContains(t, collector.errs[1], "panic: boom")
}

func TestChainUnknownTransformer(t *testing.T) {
	_, err := NewChain([]Config{{Name: "nope"}}, nil, communication.New(), nil)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestEmptyChainWrapIsIdentity(t *testing.T) {
	chain, err := NewChain(nil, nil, communication.New(), nil)
	require.NoError(t, err)
	next := &recordingSender{}
	assert.Same(t, next, chain.Wrap(next))
}
