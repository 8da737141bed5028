// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// native is the byte order of every multi-byte field on the wire.
var native = binary.NativeEndian

// countSize is the width of the count (and rows/cols) field.
const countSize = 8

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// Layout describes where a message type keeps its count and elements.
// It is derived once per type and is what the size formula, the
// fingerprint, and tooling descriptions are computed from.
type Layout struct {
	Name string

	// FieldsSize is the byte width of the type-specific fixed fields
	// between the header and the count.
	FieldsSize int

	// CountOffset is the offset of the first count field (rows, for a
	// matrix).
	CountOffset int

	// DataOffset is the offset of element zero.
	DataOffset int

	// Prefix is the size of the message with zero elements: the size
	// of the type with one element, minus one element.
	Prefix int

	ElementName  string
	ElementSize  int
	ElementAlign int

	// Dims is the number of count fields: 1 for vararray types, 2 for
	// matrices.
	Dims int
}

// newLayout computes offsets and the prefix size with C natural
// alignment rules. The struct alignment is the largest of the header
// (8), the fixed fields and the element alignment, and the struct is
// padded to it; the one element already included in that padded size
// is subtracted to give the prefix.
func newLayout(name string, fieldsSize, fieldsAlign int, dims int, elementName string, elementSize, elementAlign int) Layout {
	countOffset := alignUp(HeaderSize+fieldsSize, countSize)
	dataOffset := alignUp(countOffset+dims*countSize, elementAlign)
	structAlign := max(headerAlign, fieldsAlign, elementAlign, countSize)
	sizeWithOne := alignUp(dataOffset+elementSize, structAlign)
	return Layout{
		Name:         name,
		FieldsSize:   fieldsSize,
		CountOffset:  countOffset,
		DataOffset:   dataOffset,
		Prefix:       sizeWithOne - elementSize,
		ElementName:  elementName,
		ElementSize:  elementSize,
		ElementAlign: elementAlign,
		Dims:         dims,
	}
}

// Fingerprint is a BLAKE3 digest of a layout together with the native
// byte order. Two processes agree on a message's bytes only if their
// fingerprints for its type are equal.
type Fingerprint [32]byte

// String returns the first 16 hex digits, enough to tell layouts apart
// in logs and recordings.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// layoutDomainKey separates layout fingerprints from any other use of
// BLAKE3 over similar strings.
var layoutDomainKey = [32]byte{
	's', 'n', 's', '.', 'm', 's', 'g', '.', 'l', 'a', 'y', 'o', 'u', 't',
}

// Fingerprint returns the layout fingerprint.
func (l Layout) Fingerprint() Fingerprint {
	hasher, err := blake3.NewKeyed(layoutDomainKey[:])
	if err != nil {
		// NewKeyed fails only for keys that are not 32 bytes.
		panic("msg: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write([]byte(l.describe()))
	var digest Fingerprint
	copy(digest[:], hasher.Sum(nil))
	return digest
}

func (l Layout) describe() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "order=%s header=%d host=%d ident=%d\n", byteOrderName(), HeaderSize, HostLen, IdentLen)
	fmt.Fprintf(&builder, "type=%s fields=%d count=%d dims=%d data=%d prefix=%d\n",
		l.Name, l.FieldsSize, l.CountOffset, l.Dims, l.DataOffset, l.Prefix)
	fmt.Fprintf(&builder, "element=%s size=%d align=%d\n", l.ElementName, l.ElementSize, l.ElementAlign)
	return builder.String()
}

func byteOrderName() string {
	var word [2]byte
	native.PutUint16(word[:], 1)
	if word[0] == 1 {
		return "little"
	}
	return "big"
}
