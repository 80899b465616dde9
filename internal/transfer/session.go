package transfer

import (
	"bytes"
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mutenix-org/mutenixd/internal/wire"
)

var (
	ErrNameTooLong  = errors.New("file name does not fit into a chunk")
	ErrFileTooLarge = errors.New("file too large for a transfer")
)

// padding byte for the last data chunk; the device firmware mishandles
// short final chunks
const padByte = 0x20

// Session holds the chunks of one file (or one delete marker) and
// tracks which of them the device has acknowledged.
type Session struct {
	id     uint16
	name   string
	size   int
	chunks []Chunk
}

// OpenSession reads path and builds its session. Delete markers are
// recognized by name only and need not exist on disk.
func OpenSession(id uint16, path string) (*Session, error) {
	name := filepath.Base(path)
	if strings.HasSuffix(name, DeleteSuffix) {
		return NewSession(id, name, nil)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return NewSession(id, name, data)
}

// NewSession chunks data for the file called name. A name ending in
// DeleteSuffix yields a single FileDelete chunk for the trimmed name.
func NewSession(id uint16, name string, data []byte) (*Session, error) {
	if strings.HasSuffix(name, DeleteSuffix) {
		target := strings.TrimSuffix(name, DeleteSuffix)
		if len(target)+1 > MaxChunkSize {
			return nil, errors.Wrap(ErrNameTooLong, target)
		}
		return &Session{
			id:     id,
			name:   target,
			chunks: []Chunk{fileDelete(id, target)},
		}, nil
	}

	if len(name)+4 > MaxChunkSize {
		return nil, errors.Wrap(ErrNameTooLong, name)
	}
	size := len(data)
	if size > math.MaxUint16 {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s has %d bytes", name, size)
	}

	padded := data
	if rem := size % MaxChunkSize; rem != 0 {
		padded = make([]byte, size, size+MaxChunkSize-rem)
		copy(padded, data)
		padded = append(padded, bytes.Repeat([]byte{padByte}, MaxChunkSize-rem)...)
	}

	total := uint16((size + MaxChunkSize - 1) / MaxChunkSize)
	chunks := make([]Chunk, 0, int(total)+2)
	chunks = append(chunks, fileStart(id, total, name, uint16(size)))
	for i := 0; i < size; i += MaxChunkSize {
		chunks = append(chunks, fileChunk(id, uint16(i/MaxChunkSize), total, padded[i:i+MaxChunkSize]))
	}
	chunks = append(chunks, fileEnd(id, total))

	return &Session{
		id:     id,
		name:   name,
		size:   size,
		chunks: chunks,
	}, nil
}

func (s *Session) ID() uint16 {
	return s.id
}

// Name is the target file name on the device.
func (s *Session) Name() string {
	return s.name
}

// Size is the unpadded file size, 0 for delete markers.
func (s *Session) Size() int {
	return s.size
}

func (s *Session) TotalChunks() int {
	return len(s.chunks)
}

// Chunks returns the session's chunks in transmission order.
func (s *Session) Chunks() []Chunk {
	return s.chunks
}

// Acknowledge marks the first chunk matching the ack's type and package.
// Acks for another session id are ignored.
func (s *Session) Acknowledge(ack wire.ChunkAck) bool {
	if ack.ID != s.id {
		return false
	}
	for i := range s.chunks {
		c := &s.chunks[i]
		if uint8(c.Type) == ack.Type && c.Package == ack.Package {
			c.Acknowledged = true
			return true
		}
	}
	return false
}

// NextUnacknowledged returns the first chunk still waiting for an ack,
// or nil once the session is complete.
func (s *Session) NextUnacknowledged() *Chunk {
	for i := range s.chunks {
		if !s.chunks[i].Acknowledged {
			return &s.chunks[i]
		}
	}
	return nil
}

func (s *Session) IsComplete() bool {
	return s.NextUnacknowledged() == nil
}

// Acknowledged counts acknowledged chunks.
func (s *Session) Acknowledged() int {
	n := 0
	for i := range s.chunks {
		if s.chunks[i].Acknowledged {
			n++
		}
	}
	return n
}
