// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

import (
	"bytes"
)

// EmbeddedString is a printable NUL-terminated byte sequence found in the
// read-only data section, together with its virtual address.
type EmbeddedString struct {
	Value   string
	Address uint64
}

// scanStrings walks .rodata and records every NUL-terminated run that
// satisfies validString.
func (r *Reader) scanStrings() ([]EmbeddedString, error) {
	sect, err := r.Section(rodataSectionName)
	if err != nil {
		return nil, err
	}
	data, err := r.sectionBytes(sect)
	if err != nil {
		return nil, err
	}
	var strings []EmbeddedString
	for start := 0; start < len(data); {
		next := len(data)
		chunk := data[start:]
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			chunk = chunk[:i]
			next = start + i + 1
		}
		if validString(chunk) {
			strings = append(strings, EmbeddedString{
				Value:   string(chunk),
				Address: sect.Addr + uint64(start),
			})
		}
		start = next
	}
	return strings, nil
}

// validString reports whether s is non-empty, every byte is printable or a
// newline, and at least one byte is not whitespace.
func validString(s []byte) bool {
	if len(s) == 0 {
		return false
	}
	allWhitespace := true
	for _, c := range s {
		if (c < 0x20 || c > 0x7e) && c != '\n' {
			return false
		}
		switch c {
		case ' ', '\t', '\n', '\v', '\f', '\r':
		default:
			allWhitespace = false
		}
	}
	return !allWhitespace
}
