package tirelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FileStampLayout names output files after the process start time.
const FileStampLayout = "2006-01-02T150405"

var (
	ErrSinkInit  = errors.New("unable to initialize record sink")
	ErrSinkWrite = errors.New("unable to write record")
)

// SinkError reports which sink operation failed. errors.Is matches Op;
// errors.Cause returns the underlying I/O error.
type SinkError struct {
	Op  error
	Err error
}

func (e *SinkError) Error() string {
	return e.Op.Error() + ": " + e.Err.Error()
}

func (e *SinkError) Cause() error  { return e.Err }
func (e *SinkError) Unwrap() error { return e.Err }

func (e *SinkError) Is(target error) bool {
	return target == e.Op
}

// Emitter appends records to a Sink. The sink is created on the first
// call to Emit and rows are only written once tire data has been seen.
type Emitter struct {
	sink        Sink
	initialized bool
}

func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// Emit writes the record if the gate is open. A failure loses the row; the
// caller is expected to carry on with the next record. When both the header
// and the row fail, the write error is returned and the init error is only
// logged.
func (e *Emitter) Emit(rec *Record, everSawTireData bool) (written bool, err error) {
	if !e.initialized {
		e.initialized = true
		if initErr := e.sink.Create(Header); initErr != nil {
			err = &SinkError{Op: ErrSinkInit, Err: initErr}
			log.WithField("err", initErr).Error("unable to create record sink")
		}
	}
	if !everSawTireData {
		return false, err
	}
	if writeErr := e.sink.Append(rec.Row()); writeErr != nil {
		log.WithField("err", writeErr).Error("unable to append record")
		return false, &SinkError{Op: ErrSinkWrite, Err: writeErr}
	}
	return true, err
}

// FileSink writes CSV rows to a file in an output directory.
type FileSink struct {
	Path string

	f *os.File
	w *csv.Writer
}

func NewFileSink(dir string, startedAt time.Time) *FileSink {
	name := "data-" + startedAt.Format(FileStampLayout) + ".csv"
	return &FileSink{
		Path: filepath.Join(dir, name),
	}
}

// Create truncates the file and writes the header.
func (s *FileSink) Create(header []string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errors.Wrapf(err, "unable to create directory for %s", s.Path)
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", s.Path)
	}
	s.setFile(f)
	return s.write(header)
}

// Append writes one row. A file that was never created is not created here,
// so a failed Create leaves every append failing on its own.
func (s *FileSink) Append(row []string) error {
	if s.f == nil {
		f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return errors.Wrapf(err, "unable to open %s", s.Path)
		}
		s.setFile(f)
	}
	return s.write(row)
}

func (s *FileSink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.w = nil
	return err
}

func (s *FileSink) setFile(f *os.File) {
	s.f = f
	s.w = csv.NewWriter(f)
}

func (s *FileSink) write(fields []string) error {
	if err := s.w.Write(fields); err != nil {
		return errors.Wrapf(err, "unable to write to %s", s.Path)
	}
	s.w.Flush()
	return errors.Wrapf(s.w.Error(), "unable to flush %s", s.Path)
}
