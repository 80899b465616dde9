package transfer

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize   = 8
	MaxChunkSize = 52
	PacketSize   = HeaderSize + MaxChunkSize

	DeleteSuffix = ".delete"

	// FileStart announces a 2 byte size field.
	sizeIndicator = 2
)

type ChunkType uint16

const (
	FileStart  ChunkType = 1
	FileChunk  ChunkType = 2
	FileEnd    ChunkType = 3
	Complete   ChunkType = 4
	FileDelete ChunkType = 5
)

func (t ChunkType) String() string {
	switch t {
	case FileStart:
		return "FileStart"
	case FileChunk:
		return "FileChunk"
	case FileEnd:
		return "FileEnd"
	case Complete:
		return "Complete"
	case FileDelete:
		return "FileDelete"
	}
	return fmt.Sprintf("ChunkType(%d)", uint16(t))
}

// Chunk is one framed unit of a file transfer. Acknowledged is local
// state and never sent.
type Chunk struct {
	Type          ChunkType
	ID            uint16
	Package       uint16
	TotalPackages uint16
	Content       []byte
	Acknowledged  bool
}

// Packet serializes the chunk into its 60 byte wire form.
func (c *Chunk) Packet() []byte {
	p := make([]byte, PacketSize)
	binary.LittleEndian.PutUint16(p[0:2], uint16(c.Type))
	binary.LittleEndian.PutUint16(p[2:4], c.ID)
	binary.LittleEndian.PutUint16(p[4:6], c.TotalPackages)
	binary.LittleEndian.PutUint16(p[6:8], c.Package)
	copy(p[HeaderSize:], c.Content)
	return p
}

func (c *Chunk) String() string {
	return fmt.Sprintf("%s id=%d package=%d/%d", c.Type, c.ID, c.Package, c.TotalPackages)
}

func fileStart(id, total uint16, name string, size uint16) Chunk {
	content := make([]byte, 0, len(name)+4)
	content = append(content, byte(len(name)))
	content = append(content, name...)
	content = append(content, sizeIndicator)
	content = append(content, byte(size), byte(size>>8))
	return Chunk{Type: FileStart, ID: id, TotalPackages: total, Content: content}
}

func fileChunk(id, pkg, total uint16, data []byte) Chunk {
	return Chunk{Type: FileChunk, ID: id, Package: pkg, TotalPackages: total, Content: data}
}

func fileEnd(id, total uint16) Chunk {
	return Chunk{Type: FileEnd, ID: id, TotalPackages: total}
}

func fileDelete(id uint16, name string) Chunk {
	content := make([]byte, 0, len(name)+1)
	content = append(content, byte(len(name)))
	content = append(content, name...)
	return Chunk{Type: FileDelete, ID: id, Content: content}
}

// CompleteChunk terminates an update run.
func CompleteChunk() Chunk {
	return Chunk{Type: Complete}
}
