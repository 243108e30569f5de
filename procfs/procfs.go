// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procfs walks the kernel process-info filesystem to enumerate
// running processes and locate their on-disk executables.
package procfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoProcess is wrapped by FindPid when no process carries the given name.
var ErrNoProcess = errors.New("no process found")

const root = "/proc"

// Process is one running process: its numeric id and its comm name.
type Process struct {
	Pid  int
	Name string
}

// Processes enumerates the numeric entries of /proc and reads each entry's
// comm pseudo-file. Entries that vanish mid-walk are skipped.
func Processes() ([]Process, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var processes []Process
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		name, err := Comm(pid)
		if err != nil || name == "" {
			continue
		}
		processes = append(processes, Process{Pid: pid, Name: name})
	}
	return processes, nil
}

// Comm returns the process name recorded in /proc/<pid>/comm.
func Comm(pid int) (string, error) {
	raw, err := os.ReadFile(filepath.Join(root, strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(raw), "\n"), nil
}

// FindPid returns the pid of the first process whose comm equals name.
func FindPid(name string) (int, error) {
	processes, err := Processes()
	if err != nil {
		return 0, err
	}
	for _, p := range processes {
		if p.Name == name {
			return p.Pid, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoProcess, name)
}

// ExecutablePath resolves the /proc/<pid>/exe symbolic link to the on-disk
// image the process is running.
func ExecutablePath(pid int) (string, error) {
	path, err := os.Readlink(filepath.Join(root, strconv.Itoa(pid), "exe"))
	if err != nil {
		return "", fmt.Errorf("read exe link: %w", err)
	}
	return path, nil
}
