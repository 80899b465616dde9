package logs

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// long lines are cut to keep the ring bounded
const maxLineLength = 500

// MemoryWriter keeps the first lines it was given forever and the
// latest ones in a ring, so a long session still exports its startup.
type MemoryWriter struct {
	mutex sync.Mutex

	start      [][]byte
	startCount int

	ring    [][]byte
	next    int
	wrapped bool
	dropped int
}

func NewMemoryWriter(size, startSize int) (*MemoryWriter, error) {
	if size < 1 || startSize < 1 {
		return nil, errors.Errorf("memory log sizes must be positive, got %d/%d", size, startSize)
	}
	return &MemoryWriter{
		start:      make([][]byte, 0, startSize),
		startCount: startSize,
		ring:       make([][]byte, size),
	}, nil
}

func (m *MemoryWriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > maxLineLength {
		p = append(p[:maxLineLength:maxLineLength], '\n')
	}
	line := make([]byte, len(p))
	copy(line, p)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.start) < m.startCount {
		m.start = append(m.start, line)
		return n, nil
	}
	if m.wrapped {
		m.dropped++
	}
	m.ring[m.next] = line
	m.next++
	if m.next == len(m.ring) {
		m.next = 0
		m.wrapped = true
	}
	return n, nil
}

// writeTo writes header, then the kept lines in the order they were
// logged.
func (m *MemoryWriter) writeTo(header string, w io.Writer) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for _, line := range m.start {
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	if m.dropped > 0 {
		if _, err := io.WriteString(w, "...\n"); err != nil {
			return err
		}
	}
	tail := m.ring[:m.next]
	if m.wrapped {
		tail = append(append([][]byte{}, m.ring[m.next:]...), tail...)
	}
	for _, line := range tail {
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryWriter) String(header string) (string, error) {
	var b bytes.Buffer
	if err := m.writeTo(header, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (m *MemoryWriter) Gzip(header string) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	gw.Name = "mutenixd.log"
	if err := m.writeTo(header, gw); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
