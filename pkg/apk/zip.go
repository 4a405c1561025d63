package apk

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"io"
)

// ZIP record signatures, little-endian on the wire.
const (
	sigEOCD        = 0x06054b50
	sigCentralDir  = 0x02014b50
	sigLocalHeader = 0x04034b50
)

// Compression methods we can read.
const (
	methodStored  = 0
	methodDeflate = 8
)

// eocdMinLen is the size of an EOCD record with an empty comment.
const eocdMinLen = 22

var (
	errArchiveFormat          = errors.New("apk: malformed zip archive")
	errEntryNotFound          = errors.New("apk: entry not found in archive")
	errUnsupportedCompression = errors.New("apk: unsupported compression method")
)

// zipEntry is the slice of a central-directory record we care about.
type zipEntry struct {
	method         uint16
	compressedSize uint32
	localOffset    uint32
}

func readU16(d []byte, o int) uint16 {
	return binary.LittleEndian.Uint16(d[o : o+2])
}

func readU32(d []byte, o int) uint32 {
	return binary.LittleEndian.Uint32(d[o : o+4])
}

// findEOCD scans backward for the End-Of-Central-Directory signature.
// The record may be followed by an archive comment, so every position from
// len-22 down to 0 is a candidate.
func findEOCD(data []byte) (int, error) {
	if len(data) < eocdMinLen {
		return 0, errArchiveFormat
	}
	for pos := len(data) - eocdMinLen; pos >= 0; pos-- {
		if readU32(data, pos) == sigEOCD {
			return pos, nil
		}
	}
	return 0, errArchiveFormat
}

// findEntry walks the central directory looking for an exact (byte-for-byte
// UTF-8) name match. A record without the central-directory signature ends
// the walk: the directory is malformed or truncated past that point.
func findEntry(data []byte, name string) (zipEntry, error) {
	eocd, err := findEOCD(data)
	if err != nil {
		return zipEntry{}, err
	}

	entryCount := int(readU16(data, eocd+10))
	dirOffset := int(readU32(data, eocd+16))
	if dirOffset < 0 || dirOffset > len(data) {
		return zipEntry{}, errArchiveFormat
	}

	want := []byte(name)
	pos := dirOffset
	for i := 0; i < entryCount; i++ {
		if pos+46 > len(data) || readU32(data, pos) != sigCentralDir {
			break
		}

		nameLen := int(readU16(data, pos+28))
		extraLen := int(readU16(data, pos+30))
		commentLen := int(readU16(data, pos+32))
		if pos+46+nameLen > len(data) {
			break
		}

		if bytes.Equal(data[pos+46:pos+46+nameLen], want) {
			return zipEntry{
				method:         readU16(data, pos+10),
				compressedSize: readU32(data, pos+20),
				localOffset:    readU32(data, pos+42),
			}, nil
		}

		pos += 46 + nameLen + extraLen + commentLen
	}

	return zipEntry{}, errEntryNotFound
}

// readZipEntry extracts and decompresses a single named entry. The sizes
// come from the central directory, not the local header, so archives written
// in streaming mode (data-descriptor flag set) read fine.
func readZipEntry(data []byte, name string) ([]byte, error) {
	entry, err := findEntry(data, name)
	if err != nil {
		return nil, err
	}

	pos := int(entry.localOffset)
	if pos+30 > len(data) || readU32(data, pos) != sigLocalHeader {
		return nil, errArchiveFormat
	}

	nameLen := int(readU16(data, pos+26))
	extraLen := int(readU16(data, pos+28))
	dataStart := pos + 30 + nameLen + extraLen
	dataEnd := dataStart + int(entry.compressedSize)
	if dataStart > len(data) || dataEnd > len(data) || dataEnd < dataStart {
		return nil, errArchiveFormat
	}

	raw := data[dataStart:dataEnd]

	switch entry.method {
	case methodStored:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	case methodDeflate:
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, errArchiveFormat
		}
		return out, nil
	default:
		return nil, errUnsupportedCompression
	}
}
