package txtfilewriter

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/utils"
	"github.com/stretchr/testify/suite"
)

type sliceReceiver struct {
	records []*element.Record
}

func (r *sliceReceiver) Receive(ctx context.Context) (*element.Record, error) {
	if len(r.records) == 0 {
		return nil, io.EOF
	}
	record := r.records[0]
	r.records = r.records[1:]
	return record, nil
}

func rows() []*element.Record {
	date := time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)
	return []*element.Record{
		element.NewRecord(element.NewLongColumn(1), element.NewStringColumn("ada"), element.NewDateColumn(date)),
		element.NewRecord(element.NewLongColumn(2), element.NewStringColumn("b,ob"), element.NewNullColumn()),
	}
}

type TxtFileWriterTestSuite struct {
	suite.Suite
	fs utils.Fs
}

func (s *TxtFileWriterTestSuite) SetupTest() {
	s.fs = utils.NewMemFs()
}

func (s *TxtFileWriterTestSuite) run(param plugin.Param, records []*element.Record) (*Writer, error) {
	w := New().(*Writer)
	tc := &plugin.TaskContext{TaskID: 3, Param: param, Fs: s.fs}
	if err := w.Init(tc); err != nil {
		return w, err
	}
	if err := w.Prepare(context.Background()); err != nil {
		return w, err
	}
	return w, w.StartWrite(context.Background(), &sliceReceiver{records: records})
}

func (s *TxtFileWriterTestSuite) read(name string, compress utils.Compression) string {
	file, err := s.fs.Open(name)
	s.Require().NoError(err)
	defer file.Close()

	r, err := compress.NewReader(file)
	s.Require().NoError(err)
	defer r.Close()

	data, err := io.ReadAll(r)
	s.Require().NoError(err)
	return string(data)
}

func (s *TxtFileWriterTestSuite) TestTruncate() {
	param := plugin.Param{
		"path":        "/out",
		"file_name":   "users",
		"write_mode":  "truncate",
		"null_format": "\\N",
		"date_format": "2006-01-02",
		"header":      []any{"id", "name", "joined"},
	}

	w, err := s.run(param, rows())
	s.Require().NoError(err)
	s.Equal("/out/users__3.txt", w.Target())
	s.True(w.SupportFailOver())

	// A repeated attempt replaces the file.
	_, err = s.run(param, rows()[:1])
	s.Require().NoError(err)
	s.Equal("id,name,joined\n1,ada,2024-03-01\n", s.read("/out/users__3.txt", utils.CompressionNone))
}

func (s *TxtFileWriterTestSuite) TestAppend() {
	param := plugin.Param{"path": "/out", "file_name": "log"}

	w, err := s.run(param, rows()[:1])
	s.Require().NoError(err)
	s.False(w.SupportFailOver())

	_, err = s.run(param, rows()[:1])
	s.Require().NoError(err)
	s.Equal("1,ada,2024-03-01 12:30:00\n1,ada,2024-03-01 12:30:00\n", s.read("/out/log__3.txt", utils.CompressionNone))
}

func (s *TxtFileWriterTestSuite) TestNonConflict() {
	param := plugin.Param{"path": "/out", "file_name": "once", "write_mode": "nonConflict"}

	_, err := s.run(param, rows())
	s.Require().NoError(err)

	_, err = s.run(param, rows())
	s.ErrorIs(err, utils.ErrExists)
}

func (s *TxtFileWriterTestSuite) TestCsvGzip() {
	param := plugin.Param{
		"path":        "/out",
		"file_name":   "users",
		"write_mode":  "truncate",
		"file_format": "csv",
		"compress":    "gzip",
	}

	w, err := s.run(param, rows())
	s.Require().NoError(err)
	s.Equal("/out/users__3.csv.gz", w.Target())
	s.Equal("1,ada,2024-03-01 12:30:00\n2,\"b,ob\",\n", s.read(w.Target(), utils.CompressionGzip))
}

func (s *TxtFileWriterTestSuite) TestPathIsFile() {
	s.Require().NoError(afero.WriteFile(s.fs, "/out", []byte("x"), 0644))

	_, err := s.run(plugin.Param{"path": "/out", "file_name": "users"}, rows())
	s.ErrorIs(err, utils.ErrBadRequest)
}

func (s *TxtFileWriterTestSuite) TestInvalidConfig() {
	_, err := s.run(plugin.Param{"path": "/out"}, nil)
	s.ErrorIs(err, utils.ErrBadRequest)

	_, err = s.run(plugin.Param{"path": "/out", "file_name": "x", "write_mode": "upsert"}, nil)
	s.ErrorIs(err, utils.ErrBadRequest)

	_, err = s.run(plugin.Param{"path": "/out", "file_name": "x", "file_format": "csv", "field_delimiter": "::"}, nil)
	s.ErrorIs(err, utils.ErrBadRequest)
}

func TestTxtFileWriterTestSuite(t *testing.T) {
	suite.Run(t, new(TxtFileWriterTestSuite))
}
