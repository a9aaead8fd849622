// Package persistence implements the self-describing container format used
// for memory store snapshots.
//
// Layout (little-endian):
//
//	Magic            [8]byte  "MEMGOSN1"
//	Version          uint16
//	CodecNameLen     uint8
//	CodecName        [CodecNameLen]byte
//	Compression      uint8
//	UncompressedSize uint32
//	StoredSize       uint32
//	Checksum         uint32   CRC-32C of the stored payload
//	Payload          [StoredSize]byte
//
// The header carries everything needed to open a snapshot without out-of-band
// knowledge: codec name, compression algorithm, and an integrity checksum.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Magic identifies memgo snapshot containers.
var Magic = [8]byte{'M', 'E', 'M', 'G', 'O', 'S', 'N', '1'}

// Version is the current container format version.
const Version uint16 = 1

var (
	// ErrInvalidMagic indicates the data is not a memgo snapshot.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrUnsupportedVersion indicates a container version this build cannot read.
	ErrUnsupportedVersion = errors.New("unsupported container version")
	// ErrChecksumMismatch indicates the payload is corrupted or truncated.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnknownCompression indicates an unrecognized compression algorithm.
	ErrUnknownCompression = errors.New("unknown compression")
)

// CRC-32C (Castagnoli), hardware-accelerated on amd64/arm64.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var byteOrder = binary.LittleEndian

// Header describes a snapshot container.
type Header struct {
	Version     uint16
	CodecName   string
	Compression Compression
}

// Write writes a snapshot container to w. The payload is compressed with
// the requested algorithm; if it turns out incompressible it is stored raw
// with Compression downgraded to CompressionNone in the header.
func Write(w io.Writer, codecName string, compression Compression, payload []byte) error {
	if len(codecName) > 255 {
		return fmt.Errorf("codec name too long: %d bytes", len(codecName))
	}

	stored, err := compress(payload, compression)
	if err != nil {
		return err
	}
	if stored == nil {
		stored = payload
		compression = CompressionNone
	}

	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, Version); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint8(len(codecName))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, codecName); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint8(compression)); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(len(payload))); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(len(stored))); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, crc32.Checksum(stored, castagnoli)); err != nil {
		return err
	}

	_, err = w.Write(stored)
	return err
}

// Read reads a snapshot container from r, validates the checksum and
// returns the header along with the decompressed payload.
func Read(r io.Reader) (*Header, []byte, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, err
	}
	if magic != Magic {
		return nil, nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic[:])
	}

	var version uint16
	if err := binary.Read(r, byteOrder, &version); err != nil {
		return nil, nil, err
	}
	if version != Version {
		return nil, nil, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, version)
	}

	var nameLen uint8
	if err := binary.Read(r, byteOrder, &nameLen); err != nil {
		return nil, nil, err
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, nil, err
	}

	var compression uint8
	if err := binary.Read(r, byteOrder, &compression); err != nil {
		return nil, nil, err
	}

	var uncompressedSize, storedSize, checksum uint32
	if err := binary.Read(r, byteOrder, &uncompressedSize); err != nil {
		return nil, nil, err
	}
	if err := binary.Read(r, byteOrder, &storedSize); err != nil {
		return nil, nil, err
	}
	if err := binary.Read(r, byteOrder, &checksum); err != nil {
		return nil, nil, err
	}

	stored := make([]byte, storedSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, nil, err
	}
	if got := crc32.Checksum(stored, castagnoli); got != checksum {
		return nil, nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrChecksumMismatch, got, checksum)
	}

	payload, err := decompress(stored, Compression(compression), uncompressedSize)
	if err != nil {
		return nil, nil, err
	}

	header := &Header{
		Version:     version,
		CodecName:   string(name),
		Compression: Compression(compression),
	}

	return header, payload, nil
}

// Encode returns a snapshot container as a byte slice. Convenience wrapper
// around Write for blob-store backed persistence.
func Encode(codecName string, compression Compression, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, codecName, compression, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot container from a byte slice.
func Decode(data []byte) (*Header, []byte, error) {
	return Read(bytes.NewReader(data))
}

// SaveToFile writes a file atomically: the content is written to a temp
// file in the same directory, fsynced and renamed over the target.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Atomically replace target.
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile reads a file through a buffered reader.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}
