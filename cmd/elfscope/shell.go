// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"elfscope.dev/elfscope/elffile"
)

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <image>",
		Short: "inspect an image interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elffile.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			return runShell(r)
		},
	}
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("sections"),
	readline.PcItem("symbols"),
	readline.PcItem("strings"),
	readline.PcItem("functions"),
	readline.PcItem("disasm"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

func runShell(r *elffile.Reader) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "elfscope> ",
		AutoComplete: shellCompleter,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := shellDispatch(r, fields); err != nil {
			if err == errShellQuit {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

var errShellQuit = fmt.Errorf("quit")

func shellDispatch(r *elffile.Reader, fields []string) error {
	switch fields[0] {
	case "quit", "exit":
		return errShellQuit
	case "help":
		fmt.Println("commands: sections, symbols, strings, functions, disasm <function>, quit")
		return nil
	case "sections":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, s := range r.Sections() {
			fmt.Fprintf(w, "%s\t%#x\t%#x\n", s.Name, s.Addr, s.Size)
		}
		return w.Flush()
	case "symbols":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, s := range r.NonFileSymbols() {
			fmt.Fprintf(w, "%s\t%#x\t%d\n", s.Name, s.Value, s.Size)
		}
		return w.Flush()
	case "strings":
		for _, s := range r.Strings() {
			fmt.Printf("%#x\t%q\n", s.Address, s.Value)
		}
		return nil
	case "functions":
		functions, err := r.Functions()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, fn := range functions {
			fmt.Fprintf(w, "%#x\t%d\t%s\n", fn.Address, fn.Size, fn.Name)
		}
		return w.Flush()
	case "disasm":
		if len(fields) != 2 {
			return fmt.Errorf("usage: disasm <function>")
		}
		return printDisassembly(r, fields[1])
	}
	return fmt.Errorf("unknown command %q", fields[0])
}
