// Package driver runs the compilation pipeline: lex, parse, lower, verify,
// optimise, generate code, and write the executable image. One Job equals
// one arena scope; everything allocated along the way is dropped together.
package driver

import (
	"fmt"

	"github.com/tliron/commonlog"

	"seraphic/internal/arena"
	"seraphic/internal/ast"
	"seraphic/internal/codegen"
	"seraphic/internal/ir"
	"seraphic/internal/lower"
	"seraphic/internal/object"
	"seraphic/internal/parser"
	"seraphic/internal/proof"
	"seraphic/internal/source"
)

var log = commonlog.GetLogger("seraphic.driver")

// Job describes one compilation.
type Job struct {
	Filename string
	Source   string
	Target   codegen.Target
	OptLevel int
	Debug    bool
	LoadBase uint64 // 0 selects the user-mode default
}

// Artifacts is everything the pipeline produced. Image is nil when any
// stage failed; Diags always carries the full diagnostic list.
type Artifacts struct {
	Tree     *ast.Module
	Module   *ir.Module
	Proofs   *proof.Table
	Codegen  *codegen.Result
	Image    []byte
	Diags    *source.List
	ArenaUse arena.Stats
}

// Run executes the pipeline. The lexer and parser accumulate diagnostics
// and continue; every later stage stops at the first error.
func Run(job Job) (*Artifacts, error) {
	a := arena.New()
	defer a.Release()

	arts := &Artifacts{}

	tree, diags := parser.Parse(job.Filename, job.Source)
	arts.Tree = tree
	arts.Diags = diags
	log.Infof("parsed %s: %d declarations, %d diagnostics",
		job.Filename, len(tree.Decls), diags.Len())
	if diags.HasErrors() {
		return arts, fmt.Errorf("%d syntax errors", diags.ErrorCount())
	}

	arts.Proofs = proof.Generate(tree)
	log.Infof("proof table: %d entries (%d proven, %d runtime, %d failed)",
		len(arts.Proofs.Entries), arts.Proofs.Proven, arts.Proofs.Runtime, arts.Proofs.Failed)

	mod, err := lower.Lower(tree, diags, a)
	if err != nil {
		return arts, err
	}
	arts.Module = mod
	log.Infof("lowered %d functions", len(mod.Functions))

	if err := ir.Verify(mod); err != nil {
		diags.Errorf(source.ErrVerifyTerminator, source.Position{Filename: job.Filename, Line: 1, Column: 1},
			"internal error: IR verification failed: %v", err)
		return arts, err
	}

	ir.NewPipeline(job.OptLevel, diags).Run(mod)
	if job.OptLevel > 0 {
		if err := ir.Verify(mod); err != nil {
			return arts, fmt.Errorf("verification after optimisation: %w", err)
		}
	}

	result, err := codegen.Generate(mod, job.Target)
	if err != nil {
		diags.Errorf(source.ErrBackendInternal, source.Position{Filename: job.Filename, Line: 1, Column: 1},
			"backend failure: %v", err)
		return arts, err
	}
	arts.Codegen = result
	log.Infof("generated %d bytes of %s code", len(result.Code), job.Target)

	w := object.NewWriter(job.Target.ArchID())
	if job.LoadBase != 0 {
		w.LoadBase = job.LoadBase
	}
	w.Debug = job.Debug
	w.Code = result.Code
	w.EntryOffset = result.EntryOffset
	w.ROData = mod.Strings.Bytes()
	w.Proofs = arts.Proofs
	w.Relocs = result.Relocs
	w.Funcs = result.Funcs
	w.Effects = effectEntries(mod, result)

	image, err := w.Build()
	if err != nil {
		diags.Errorf(source.ErrWriteBuffer, source.Position{Filename: job.Filename, Line: 1, Column: 1},
			"image assembly failed: %v", err)
		return arts, err
	}
	arts.Image = image
	arts.ArenaUse = a.Stats()
	log.Infof("image: %d bytes", len(image))
	return arts, nil
}

// effectEntries builds the effect table from the IR's declared masks and
// the backend's function placement. Verified masks equal the declared ones
// here; effect inference is the loader host's concern.
func effectEntries(mod *ir.Module, result *codegen.Result) []object.EffectEntry {
	var entries []object.EffectEntry
	for _, name := range result.FuncOrder {
		info := result.Funcs[name]
		declared := uint32(0)
		if fn := mod.FindFunction(name); fn != nil {
			declared = uint32(fn.Effects)
		}
		entries = append(entries, object.EffectEntry{
			Name:       name,
			FuncOffset: uint32(info.Offset),
			FuncSize:   uint32(info.Size),
			Declared:   declared,
			Verified:   declared,
		})
	}
	return entries
}
