// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inspect matches a running process to its on-disk image and wires
// the image's symbols into a tracer observation.
package inspect

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"elfscope.dev/elfscope/elffile"
	"elfscope.dev/elfscope/procfs"
	"elfscope.dev/elfscope/trace"
)

// Target pairs a live process with the reader of its executable image.
type Target struct {
	Pid   int
	Image *elffile.Reader
}

// FindTarget locates the named process, resolves its executable and opens an
// image reader on it.
func FindTarget(name string) (*Target, error) {
	pid, err := procfs.FindPid(name)
	if err != nil {
		return nil, err
	}
	path, err := procfs.ExecutablePath(pid)
	if err != nil {
		return nil, err
	}
	image, err := elffile.Open(path)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"pid": pid, "image": path}).Debug("matched process to image")
	return &Target{Pid: pid, Image: image}, nil
}

// Attach builds a tracer for the target, with the load base derived from the
// image's file type.
func (t *Target) Attach() (*trace.Tracer, error) {
	return trace.Attach(t.Pid, t.Image.IsPositionIndependent())
}

// ObservationList resolves function names to the symbols whose entry
// addresses the tracer will break on. Symbol values are rebased by the given
// load base so breakpoints land in the live address space.
func (t *Target) ObservationList(base uint64, names ...string) ([]elffile.Symbol, error) {
	var symbols []elffile.Symbol
	for _, name := range names {
		sym, err := t.Image.Symbol(name)
		if err != nil {
			return nil, err
		}
		sym.Value += base
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no functions selected for observation")
	}
	return symbols, nil
}

// Close releases the image reader.
func (t *Target) Close() error {
	return t.Image.Close()
}
