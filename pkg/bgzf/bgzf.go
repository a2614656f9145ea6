// Package bgzf reads and writes the blocked gzip format used by indexed
// genomic files.
//
// A BGZF file is a series of gzip members of at most 64 KiB each, every one
// carrying its compressed size in a "BC" extra subfield. Positions are
// expressed as virtual offsets: the compressed offset of a block in the
// upper 48 bits and the offset within its uncompressed data in the lower 16.
package bgzf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// MaxBlockSize is the largest encoded block, header and trailer included
	MaxBlockSize = 1 << 16
	// MaxDataSize is the most uncompressed data the writer puts in one block
	MaxDataSize = 0xff00

	headerSize  = 18
	trailerSize = 8
)

// eofBlock is the empty block that terminates a BGZF file
var eofBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// VirtualOffset addresses a byte in a BGZF stream
type VirtualOffset uint64

// NewVirtualOffset packs a compressed block offset and an offset within the
// block's uncompressed data.
func NewVirtualOffset(compressed int64, uncompressed int) VirtualOffset {
	return VirtualOffset(uint64(compressed)<<16 | uint64(uncompressed&0xffff))
}

// Compressed returns the file offset of the block
func (v VirtualOffset) Compressed() int64 { return int64(v >> 16) }

// Uncompressed returns the offset within the block's data
func (v VirtualOffset) Uncompressed() int { return int(v & 0xffff) }

func (v VirtualOffset) String() string {
	return fmt.Sprintf("%d:%d", v.Compressed(), v.Uncompressed())
}

// IsBGZF reports whether header starts with a BGZF block header
func IsBGZF(header []byte) bool {
	if len(header) < headerSize {
		return false
	}
	if header[0] != 0x1f || header[1] != 0x8b || header[2] != 8 || header[3]&4 == 0 {
		return false
	}
	xlen := int(binary.LittleEndian.Uint16(header[10:12]))
	_, ok := findBSIZE(header[12:min(len(header), 12+xlen)])
	return ok
}

// IsEOFBlock reports whether b is the canonical empty terminating block
func IsEOFBlock(b []byte) bool {
	return bytes.Equal(b, eofBlock)
}

// findBSIZE scans gzip extra subfields for BC and returns its value
func findBSIZE(extra []byte) (int, bool) {
	for len(extra) >= 4 {
		slen := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+slen {
			return 0, false
		}
		if extra[0] == 'B' && extra[1] == 'C' && slen == 2 {
			return int(binary.LittleEndian.Uint16(extra[4:6])), true
		}
		extra = extra[4+slen:]
	}
	return 0, false
}
