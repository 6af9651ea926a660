package ir

import (
	"fmt"
	"strings"
)

// Dump renders the module as text for --emit-ir and debugging.
func Dump(m *Module) string {
	var out strings.Builder
	for i, fn := range m.Functions {
		if i > 0 {
			out.WriteString("\n")
		}
		dumpFunction(&out, fn)
	}
	return out.String()
}

func dumpFunction(out *strings.Builder, fn *Function) {
	var params []string
	for _, p := range fn.Params {
		params = append(params, fmt.Sprintf("p%d: %s", p.ID, p.Type))
	}
	fmt.Fprintf(out, "fn %s(%s) -> %s effects(%s) {\n",
		fn.Name, strings.Join(params, ", "), fn.Type.Return, fn.Effects)

	for _, b := range fn.Blocks {
		var preds []string
		for _, p := range b.Preds {
			preds = append(preds, p.String())
		}
		if len(preds) > 0 {
			fmt.Fprintf(out, "%s:  ; preds: %s\n", b, strings.Join(preds, ", "))
		} else {
			fmt.Fprintf(out, "%s:\n", b)
		}
		for _, ins := range b.Instrs {
			fmt.Fprintf(out, "  %s\n", InstrString(ins))
		}
	}
	out.WriteString("}\n")
}

// InstrString renders one instruction.
func InstrString(ins *Instr) string {
	var sb strings.Builder
	if ins.Result != nil {
		fmt.Fprintf(&sb, "%%%d:%s = ", ins.Result.ID, ins.Result.Type)
	}
	sb.WriteString(ins.Op.String())

	switch ins.Op {
	case JUMP:
		fmt.Fprintf(&sb, " %s", ins.Target1)
		return sb.String()
	case BRANCH:
		fmt.Fprintf(&sb, " %s, %s, %s", ins.Operands[0], ins.Target1, ins.Target2)
		return sb.String()
	case SWITCH:
		fmt.Fprintf(&sb, " %s", ins.Operands[0])
		for i, t := range ins.Targets {
			fmt.Fprintf(&sb, ", %s -> %s", ins.Operands[i+1], t)
		}
		if ins.Target1 != nil {
			fmt.Fprintf(&sb, ", default -> %s", ins.Target1)
		}
		return sb.String()
	}

	var parts []string
	switch ins.Op {
	case CALL:
		parts = append(parts, "@"+ins.Callee.Name)
	case GEP:
		parts = append(parts, fmt.Sprintf("field %d", ins.Field))
	case SUBSTRATE_ENTER:
		parts = append(parts, fmt.Sprintf("kind %d", ins.Field))
	}
	for _, op := range ins.Operands {
		parts = append(parts, op.String())
	}
	if len(parts) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
