package logs

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	memoryLines      = 2000
	memoryStartLines = 200
	megabyte         = 1 << 20
)

type Options struct {
	Level           string
	Verbose         bool
	Console         bool
	File            bool
	FilePath        string
	FileMaxSize     int64
	FileBackupCount int
}

// Logger owns the process-wide logrus logger and its outputs. Every
// line also goes to Memory, which the status page exports.
type Logger struct {
	base   *logrus.Logger
	Memory *MemoryWriter
	file   *lumberjack.Logger
}

func New(o Options) (*Logger, error) {
	level, err := logrus.ParseLevel(o.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", o.Level)
	}
	if o.Verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}

	memory, err := NewMemoryWriter(memoryLines, memoryStartLines)
	if err != nil {
		return nil, err
	}

	l := &Logger{Memory: memory}
	outputs := []io.Writer{memory}
	if o.Console {
		outputs = append(outputs, os.Stderr)
	}
	if o.File {
		if o.FilePath == "" {
			return nil, errors.New("file logging enabled without a path")
		}
		l.file = &lumberjack.Logger{
			Filename:   o.FilePath,
			MaxSize:    maxSizeMB(o.FileMaxSize),
			MaxBackups: o.FileBackupCount,
		}
		outputs = append(outputs, l.file)
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(io.MultiWriter(outputs...))
	l.base = log
	return l, nil
}

// lumberjack rotates in whole megabytes.
func maxSizeMB(size int64) int {
	mb := int((size + megabyte - 1) / megabyte)
	if mb < 1 {
		return 1
	}
	return mb
}

// Get returns an entry tagged with the component it logs for.
func (l *Logger) Get(context string) *logrus.Entry {
	return l.base.WithFields(logrus.Fields{
		"Context": context,
	})
}

func (l *Logger) Level() logrus.Level {
	return l.base.GetLevel()
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
