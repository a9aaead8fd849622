package persistence

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"id":"doc_0","text":"i like to play badminton on weekends"}`, 64))

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Encode("go-json", c, payload)
			require.NoError(t, err)

			header, got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.Equal(t, "go-json", header.CodecName)
			assert.Equal(t, Version, header.Version)
		})
	}
}

func TestContainerIncompressiblePayload(t *testing.T) {
	// Too small/random to compress; must fall back to raw storage. LZ4's
	// CompressBlock reports success even when the block grew, so the
	// fallback has to compare sizes, not just check for zero output.
	payload := []byte{0x7f, 0x01, 0xc3, 0x9a}

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Encode("json", c, payload)
			require.NoError(t, err)

			header, got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.Equal(t, CompressionNone, header.Compression)
		})
	}
}

func TestContainerInvalidMagic(t *testing.T) {
	data, err := Encode("json", CompressionNone, []byte("payload"))
	require.NoError(t, err)

	data[0] = 'X'

	_, _, err = Decode(data)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestContainerChecksumMismatch(t *testing.T) {
	data, err := Encode("json", CompressionNone, []byte("payload"))
	require.NoError(t, err)

	// Flip a payload byte.
	data[len(data)-1] ^= 0xff

	_, _, err = Decode(data)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestContainerTruncated(t *testing.T) {
	data, err := Encode("json", CompressionNone, []byte("payload"))
	require.NoError(t, err)

	_, _, err = Decode(data[:len(data)-3])
	assert.Error(t, err)
}

func TestSaveToFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "memory.db")

	require.NoError(t, SaveToFile(target, func(w io.Writer) error {
		return Write(w, "json", CompressionZSTD, []byte("first"))
	}))
	require.NoError(t, SaveToFile(target, func(w io.Writer) error {
		return Write(w, "json", CompressionZSTD, []byte("second"))
	}))

	var payload []byte
	require.NoError(t, LoadFromFile(target, func(r io.Reader) error {
		_, p, err := Read(r)
		payload = p
		return err
	}))
	assert.Equal(t, []byte("second"), payload)

	// No leftover temp files after the rename.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "memory.db", entries[0].Name())
}

func TestWriteReadStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "go-json", CompressionZSTD, []byte("stream payload")))

	header, payload, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "go-json", header.CodecName)
	assert.Equal(t, []byte("stream payload"), payload)
}
