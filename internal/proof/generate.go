package proof

import (
	"encoding/binary"
	"fmt"

	"seraphic/internal/ast"
)

// Generate walks the tree and appends one entry per checked construct.
func Generate(mod *ast.Module) *Table {
	g := &generator{table: NewTable()}
	for _, decl := range mod.Decls {
		g.walkDecl(decl)
	}
	return g.table
}

type generator struct {
	table *Table
}

func (g *generator) add(e Entry) {
	g.table.Add(e)
}

func (g *generator) walkDecl(decl ast.Decl) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		declared := "pure"
		if d.Annot != nil && !d.Annot.Pure && len(d.Annot.Effects) > 0 {
			declared = ""
			for i, e := range d.Annot.Effects {
				if i > 0 {
					declared += ","
				}
				declared += e.Value
			}
		}
		g.add(Entry{
			Kind:        KindEffect,
			Status:      StatusProven,
			Pos:         d.Name.Pos,
			Description: fmt.Sprintf("function %s declares effects: %s", d.Name.Value, declared),
		})
		if d.Body != nil {
			g.walkBlock(d.Body)
		}
	case *ast.ImplBlock:
		for _, fn := range d.Funcs {
			g.walkDecl(fn)
		}
	case *ast.LetDecl:
		g.walkLet(d)
	}
}

func (g *generator) walkLet(d *ast.LetDecl) {
	if d.Init != nil {
		g.add(Entry{
			Kind:        KindInit,
			Status:      StatusProven,
			Pos:         d.Name.Pos,
			Description: "variable initialized at declaration",
		})
		g.walkExpr(d.Init)
	}
}

func (g *generator) walkBlock(block *ast.BlockExpr) {
	for _, stmt := range block.Stmts {
		g.walkStmt(stmt)
	}
	if block.Tail != nil {
		g.walkExpr(block.Tail)
	}
}

func (g *generator) walkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		g.walkLet(s.Decl)
	case *ast.ExprStmt:
		g.walkExpr(s.Value)
	case *ast.ReturnStmt:
		if s.Value != nil {
			g.walkExpr(s.Value)
		}
	case *ast.WhileStmt:
		g.walkExpr(s.Cond)
		g.walkBlock(s.Body)
	case *ast.ForStmt:
		if s.Range != nil {
			g.walkExpr(s.Range.Start)
			g.walkExpr(s.Range.End)
		}
		g.walkBlock(s.Body)
	case *ast.SubstrateStmt:
		switch s.Kind {
		case ast.SubstratePersist:
			g.add(Entry{
				Kind: KindSubstrate, Status: StatusRuntime, Pos: s.Pos,
				Description: "persist block requires Atlas transaction",
			})
		case ast.SubstrateAether:
			g.add(Entry{
				Kind: KindSubstrate, Status: StatusRuntime, Pos: s.Pos,
				Description: "aether block requires network context",
			})
		case ast.SubstrateRecover:
			g.add(Entry{
				Kind: KindVoid, Status: StatusProven, Pos: s.Pos,
				Description: "recover block handles VOID values",
			})
		}
		g.walkBlock(s.Body)
	}
}

func (g *generator) walkExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.IndexExpr:
		var payload [16]byte
		binary.LittleEndian.PutUint32(payload[0:], 0) // array size unknown here
		g.add(Entry{
			Kind: KindBounds, Status: StatusRuntime, Pos: e.Pos,
			Description: "runtime bounds check inserted",
			Payload:     payload,
		})
		g.walkExpr(e.Target)
		g.walkExpr(e.Index)

	case *ast.PropagateExpr:
		g.add(Entry{
			Kind: KindVoid, Status: StatusProven, Pos: e.Pos,
			Description: "VOID propagated via ??",
		})
		g.walkExpr(e.Value)

	case *ast.AssertExpr:
		g.add(Entry{
			Kind: KindVoid, Status: StatusRuntime, Pos: e.Pos,
			Description: "VOID assertion !! may panic",
		})
		g.walkExpr(e.Value)

	case *ast.CoalesceExpr:
		g.walkExpr(e.Value)
		g.walkExpr(e.Default)

	case *ast.BinaryExpr:
		if e.Op == "/" || e.Op == "%" {
			g.add(Entry{
				Kind: KindVoid, Status: StatusRuntime, Pos: e.Pos,
				Description: "division may produce VOID (div by zero)",
			})
		}
		g.walkExpr(e.Left)
		g.walkExpr(e.Right)

	case *ast.UnaryExpr:
		g.walkExpr(e.Value)
	case *ast.AssignExpr:
		g.walkExpr(e.Target)
		g.walkExpr(e.Value)
	case *ast.FieldAccessExpr:
		g.walkExpr(e.Target)
	case *ast.CallExpr:
		g.walkExpr(e.Callee)
		for _, a := range e.Args {
			g.walkExpr(a)
		}
	case *ast.MethodCallExpr:
		g.walkExpr(e.Recv)
		for _, a := range e.Args {
			g.walkExpr(a)
		}
	case *ast.ClosureExpr:
		g.walkExpr(e.Body)
	case *ast.ArrayExpr:
		for _, el := range e.Elems {
			g.walkExpr(el)
		}
	case *ast.StructLiteralExpr:
		for _, f := range e.Fields {
			g.walkExpr(f.Value)
		}
	case *ast.CastExpr:
		g.walkExpr(e.Value)
	case *ast.RangeExpr:
		g.walkExpr(e.Start)
		g.walkExpr(e.End)
	case *ast.IfExpr:
		g.walkExpr(e.Cond)
		g.walkBlock(e.Then)
		if e.Else != nil {
			g.walkExpr(e.Else)
		}
	case *ast.MatchExpr:
		g.walkExpr(e.Subject)
		for _, arm := range e.Arms {
			g.walkExpr(arm.Body)
		}
	case *ast.BlockExpr:
		g.walkBlock(e)
	}
}
