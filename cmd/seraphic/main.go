package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"seraphic/internal/codegen"
	"seraphic/internal/driver"
	"seraphic/internal/ir"
	"seraphic/internal/source"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	output   string
	emitIR   bool
	emitAsm  bool
	emitC    bool
	optLevel int
	debug    bool
	verbose  bool
	target   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "seraphic [flags] input.sph",
		Short:         "Ahead-of-time compiler for the Seraphim language",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "a.out", "output path")
	flags.BoolVar(&opts.emitIR, "emit-ir", false, "dump the IR instead of producing an executable")
	flags.BoolVar(&opts.emitAsm, "emit-asm", false, "dump the assembly trace instead of producing an executable")
	flags.BoolVar(&opts.emitC, "emit-c", false, "transpile to C (unsupported in this build)")
	flags.IntVarP(&opts.optLevel, "opt", "O", 1, "optimisation level (0-3)")
	flags.BoolVarP(&opts.debug, "debug", "g", false, "include debug information")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print per-stage statistics")
	flags.StringVar(&opts.target, "target", "x64", "target architecture: x64|x86_64|arm64|aarch64|riscv64")

	return cmd
}

func run(opts *options, input string) error {
	if opts.verbose {
		commonlog.Configure(1, nil)
	}

	if opts.emitC {
		fmt.Fprintln(os.Stderr, "error: transpile output is not supported in this build")
		return fmt.Errorf("unsupported emit mode")
	}

	target, err := codegen.ParseTarget(opts.target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}

	level := opts.optLevel
	if level < 0 {
		level = 0
	}
	if level > 3 {
		level = 3
	}

	src, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read %s: %v\n", input, err)
		return err
	}

	arts, runErr := driver.Run(driver.Job{
		Filename: input,
		Source:   string(src),
		Target:   target,
		OptLevel: level,
		Debug:    opts.debug,
	})
	reportDiagnostics(input, string(src), arts.Diags)
	if runErr != nil {
		return runErr
	}

	if opts.verbose {
		fmt.Printf("declarations: %d\n", len(arts.Tree.Decls))
		fmt.Printf("functions:    %d\n", len(arts.Module.Functions))
		fmt.Printf("proofs:       %d (%d proven, %d runtime)\n",
			len(arts.Proofs.Entries), arts.Proofs.Proven, arts.Proofs.Runtime)
		fmt.Printf("code bytes:   %d\n", len(arts.Codegen.Code))
		fmt.Printf("image bytes:  %d\n", len(arts.Image))
		fmt.Printf("arena allocs: %d\n", arts.ArenaUse.Allocations)
	}

	switch {
	case opts.emitIR:
		fmt.Print(ir.Dump(arts.Module))
	case opts.emitAsm:
		fmt.Print(arts.Codegen.Asm)
	default:
		if err := os.WriteFile(opts.output, arts.Image, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot write %s: %v\n", opts.output, err)
			return err
		}
		if opts.verbose {
			color.Green("wrote %s (%d bytes)", opts.output, len(arts.Image))
		}
	}
	return nil
}

// reportDiagnostics prints the canonical one-line form for every
// diagnostic, plus the caret-marked block when stderr is a terminal.
func reportDiagnostics(filename, src string, diags *source.List) {
	if diags == nil || diags.Len() == 0 {
		return
	}
	reporter := source.NewReporter(filename, src)
	pretty := isatty.IsTerminal(os.Stderr.Fd())
	for _, d := range diags.All() {
		fmt.Fprintln(os.Stderr, d.Oneline())
		if pretty {
			fmt.Fprint(os.Stderr, reporter.Format(d))
		}
	}
}
