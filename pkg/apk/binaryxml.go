package apk

import (
	"errors"
	"unicode/utf16"
)

// Android binary XML chunk constants (the compiled AndroidManifest.xml
// layout produced by aapt).
const (
	bxmlMagic        = 0x00080003 // RES_XML_TYPE + 8-byte header size
	chunkStringPool  = 0x0001
	chunkXMLStartEl  = 0x0102
	stringPoolUTF8   = 0x100 // flag bit in the string-pool header
	attrTypeString   = 3     // Res_value dataType for a pooled string
	noRawValue       = 0xFFFFFFFF
	startElHeaderLen = 36
	attrLen          = 20
)

var errManifestFormat = errors.New("apk: malformed binary manifest")

// parseStringPool decodes the string pool chunk starting at cs. Strings are
// best effort: an out-of-range offset yields an empty string and malformed
// trailing data is truncated rather than rejected, because a damaged pool
// tail must not take down package-name extraction.
func parseStringPool(data []byte, cs int) ([]string, error) {
	if cs+28 > len(data) {
		return nil, errManifestFormat
	}

	stringCount := int(readU32(data, cs+8))
	flags := readU32(data, cs+16)
	stringsStart := int(readU32(data, cs+20))
	isUTF8 := flags&stringPoolUTF8 != 0

	offsetsStart := cs + 28
	absStringsStart := cs + stringsStart
	if stringCount < 0 || offsetsStart+stringCount*4 > len(data) {
		return nil, errManifestFormat
	}

	strings := make([]string, 0, stringCount)
	for i := 0; i < stringCount; i++ {
		offset := absStringsStart + int(readU32(data, offsetsStart+i*4))
		if offset < 0 || offset >= len(data) {
			strings = append(strings, "")
			continue
		}
		if isUTF8 {
			strings = append(strings, decodeUTF8String(data, offset))
		} else {
			strings = append(strings, decodeUTF16String(data, offset))
		}
	}
	return strings, nil
}

// decodeUTF8String reads a UTF-8 pool entry: a character count then a byte
// count, each 1 byte or 2 bytes with the high bit of the first byte marking
// the wide form, followed by that many bytes.
func decodeUTF8String(data []byte, pos int) string {
	// character count, unused beyond advancing the cursor
	if data[pos]&0x80 != 0 {
		pos += 2
	} else {
		pos++
	}
	if pos >= len(data) {
		return ""
	}

	var byteCount int
	if data[pos]&0x80 != 0 {
		if pos+1 >= len(data) {
			return ""
		}
		byteCount = int(data[pos]&0x7F)<<8 | int(data[pos+1])
		pos += 2
	} else {
		byteCount = int(data[pos])
		pos++
	}

	end := pos + byteCount
	if end > len(data) {
		end = len(data)
	}
	if pos > end {
		return ""
	}
	return string(data[pos:end])
}

// decodeUTF16String reads a UTF-16LE pool entry: a 2-byte character count
// then that many code units. Units past the buffer end are dropped.
func decodeUTF16String(data []byte, pos int) string {
	if pos+2 > len(data) {
		return ""
	}
	charCount := int(readU16(data, pos))
	start := pos + 2

	units := make([]uint16, 0, charCount)
	for i := 0; i < charCount; i++ {
		idx := start + i*2
		if idx+1 >= len(data) {
			break
		}
		units = append(units, readU16(data, idx))
	}
	return string(utf16.Decode(units))
}

// parsePackageName walks the binary XML and returns the package attribute of
// the root <manifest> element. Only the standard aapt layout is supported:
// the 8-byte container header followed immediately by the string pool.
func parsePackageName(data []byte) (string, error) {
	if len(data) < 16 || readU32(data, 0) != bxmlMagic {
		return "", errManifestFormat
	}
	if readU16(data, 8) != chunkStringPool {
		return "", errManifestFormat
	}

	poolSize := int(readU32(data, 12))
	strings, err := parseStringPool(data, 8)
	if err != nil {
		return "", err
	}

	// Chunk walk: cursor + declared size, no recursion. Anything that is
	// not a START_ELEMENT is skipped wholesale by its size field.
	pos := 8 + poolSize
	for pos+8 <= len(data) {
		chunkType := readU16(data, pos)
		chunkSize := int(readU32(data, pos+4))
		if chunkSize == 0 {
			break
		}

		if chunkType == chunkXMLStartEl && pos+startElHeaderLen <= len(data) {
			nameIdx := int(readU32(data, pos+20))
			if nameIdx >= 0 && nameIdx < len(strings) && strings[nameIdx] == "manifest" {
				return findPackageAttr(data, pos, strings)
			}
		}
		pos += chunkSize
	}
	return "", errManifestFormat
}

// findPackageAttr scans the attribute array of a START_ELEMENT chunk for the
// attribute named "package". The root manifest element either carries it or
// the document has no package name; sibling and child elements are never
// consulted.
func findPackageAttr(data []byte, pos int, strings []string) (string, error) {
	attrCount := int(readU16(data, pos+28))
	for a := 0; a < attrCount; a++ {
		ao := pos + startElHeaderLen + a*attrLen
		if ao+attrLen > len(data) {
			break
		}

		nameIdx := int(readU32(data, ao+4))
		if nameIdx < 0 || nameIdx >= len(strings) || strings[nameIdx] != "package" {
			continue
		}

		// Preferred: the raw value is itself a pool index.
		rawIdx := readU32(data, ao+8)
		if rawIdx != noRawValue && int(rawIdx) < len(strings) {
			return strings[rawIdx], nil
		}

		// Fallback: a typed Res_value whose dataType says string.
		if data[ao+15] == attrTypeString {
			typedIdx := int(readU32(data, ao+16))
			if typedIdx >= 0 && typedIdx < len(strings) {
				return strings[typedIdx], nil
			}
		}
	}
	return "", errManifestFormat
}
