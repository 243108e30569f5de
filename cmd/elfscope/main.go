// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The elfscope tool inspects 64-bit ELF executables and observes functions
// of running processes. Run "elfscope help" for a list of commands.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"elfscope.dev/elfscope/disasm"
	"elfscope.dev/elfscope/elffile"
	"elfscope.dev/elfscope/inspect"
	"elfscope.dev/elfscope/procfs"
	"elfscope.dev/elfscope/trace"
)

var log = logrus.New()

func main() {
	root := &cobra.Command{
		Use:           "elfscope",
		Short:         "inspect ELF executables and observe live processes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	verbose := root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *verbose {
			log.SetLevel(logrus.DebugLevel)
			logrus.SetLevel(logrus.DebugLevel)
		}
	}

	root.AddCommand(psCmd(), sectionsCmd(), symbolsCmd(), stringsCmd(),
		functionsCmd(), disasmCmd(), observeCmd(), shellCmd())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func psCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "list running processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			processes, err := procfs.Processes()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, p := range processes {
				fmt.Fprintf(w, "%d\t%s\n", p.Pid, p.Name)
			}
			return w.Flush()
		},
	}
}

func sectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections <image>",
		Short: "print the image's section table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elffile.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tADDR\tOFFSET\tSIZE")
			for _, s := range r.Sections() {
				fmt.Fprintf(w, "%s\t%d\t%#x\t%#x\t%#x\n", s.Name, s.Type, s.Addr, s.Offset, s.Size)
			}
			return w.Flush()
		},
	}
}

func symbolsCmd() *cobra.Command {
	var dynamic bool
	cmd := &cobra.Command{
		Use:   "symbols <image>",
		Short: "print the image's symbol table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elffile.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			symbols := r.StaticSymbols()
			if dynamic {
				symbols = r.DynamicSymbols()
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVALUE\tSIZE\tKIND\tBINDING")
			for _, s := range symbols {
				fmt.Fprintf(w, "%s\t%#x\t%d\t%d\t%d\n", s.Name, s.Value, s.Size, s.Type.Kind(), s.Type.Binding())
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&dynamic, "dynamic", false, "print the dynamic symbol table")
	return cmd
}

func stringsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strings <image>",
		Short: "print strings embedded in the read-only data section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elffile.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			for _, s := range r.Strings() {
				fmt.Printf("%#x\t%q\n", s.Address, s.Value)
			}
			return nil
		},
	}
}

func functionsCmd() *cobra.Command {
	var rela bool
	var array string
	cmd := &cobra.Command{
		Use:   "functions <image>",
		Short: "list functions resident in the code sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elffile.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			var functions []elffile.Function
			switch {
			case rela:
				functions, err = r.RelaFunctions()
			case array != "":
				functions, err = r.FunctionsFromArraySection(array)
			default:
				functions, err = r.Functions()
			}
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, fn := range functions {
				fmt.Fprintf(w, "%#x\t%d\t%s\n", fn.Address, fn.Size, fn.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&rela, "rela", false, "functions referenced by PLT relocations")
	cmd.Flags().StringVar(&array, "array", "", "functions listed in an address-array section, e.g. .init_array")
	return cmd
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <image> <function>",
		Short: "disassemble a function with resolved references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elffile.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			return printDisassembly(r, args[1])
		},
	}
}

func printDisassembly(r *elffile.Reader, name string) error {
	fn, err := r.Function(name)
	if err != nil {
		return err
	}
	d := disasm.New(r.StaticSymbols(), r.DynamicSymbols(), r.Strings())
	lines, err := d.Disassemble(fn.Opcodes, fn.Address)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, line := range lines {
		marker := ""
		if line.IsJump {
			marker = "*"
		}
		fmt.Fprintf(w, "%#x\t% x\t%s\t%s\t%s\n", line.Address, line.Opcodes, line.Mnemonic, line.Operands, marker)
	}
	return w.Flush()
}

func observeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "observe <process> <function>...",
		Short: "attach to a running process and record hits of its functions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return observe(args[0], args[1:])
		},
	}
}

func observe(process string, names []string) error {
	// ptrace calls must all come from the attaching thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	target, err := inspect.FindTarget(process)
	if err != nil {
		return err
	}
	defer target.Close()

	tracer, err := target.Attach()
	if err != nil {
		return err
	}
	defer tracer.Detach()
	defer tracer.Close()

	functions, err := target.ObservationList(tracer.Base(), names...)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"pid": target.Pid, "base": fmt.Sprintf("%#x", tracer.Base())}).
		Info("attached")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	for !tracer.Dead() {
		select {
		case <-interrupt:
			log.Info("interrupted")
			printTrace(tracer.Arguments())
			return nil
		default:
		}
		if err := tracer.StepFunctions(functions); err != nil {
			printTrace(tracer.Arguments())
			return err
		}
	}
	log.Info("tracee exited")
	printTrace(tracer.Arguments())
	return nil
}

func printTrace(args map[string]trace.Arguments) {
	for name, a := range args {
		fmt.Printf("%s(%#x, %#x, %#x)\n", name, a.Rdi, a.Rsi, a.Rdx)
	}
}
