package printer

import (
	"fmt"
	"strings"

	"v8heap/internal/v8"
)

// DebugLine describes a function as "name(args) at script:line". args may
// be empty.
func (p *Printer) DebugLine(fn v8.JSFunction, args string) string {
	res := fn.DisplayName()
	if args != "" {
		res += "(" + args + ")"
	}
	loc := "(no script)"
	if sfi, ok := fn.Shared().Get(); ok {
		if l := sfi.Location(); l != "" {
			loc = l
		}
	}
	return res + " at " + loc
}

func (p *Printer) function(fn v8.JSFunction) string {
	res := "<function: " + p.DebugLine(fn, "")
	if !p.opts.Detailed {
		return p.pal.value.Sprint(res + ">")
	}
	res = p.pal.header.Sprint(res)
	if ctx, ok := fn.Context().Get(); ok {
		res += p.pal.key.Sprint("\n  context") + "=" + p.pal.addr.Sprintf("0x%x", ctx.Raw())
		res += ":" + p.context(ctx)
	}
	if p.opts.Source {
		if src, ok := functionSource(fn); ok {
			name, _ := fn.Name()
			res += "\n  source:\nfunction " + name + src + "\n"
		}
	}
	return res + ">"
}

// context renders a function context with its closure and named variables.
func (p *Printer) context(ctx v8.Context) string {
	res := "<Context: {\n"
	if prev, ok := ctx.Previous().Get(); ok && !p.h.IsHoleOrUndefined(prev.Value()) {
		res += p.pal.key.Sprint("    (previous)") + "=" + p.pal.addr.Sprintf("0x%x", prev.Raw()) +
			":" + p.pal.value.Sprint("<Context>") + ",\n"
	}
	var lines []string
	if fn, ok := ctx.Closure().Get(); ok {
		lines = append(lines, p.pal.key.Sprint("    (closure)")+"="+p.pal.addr.Sprintf("0x%x", fn.Raw())+
			" {"+p.nested().function(fn)+"}")
	}
	locals, _ := ctx.NamedLocals(p.h.Options().MaxProperties)
	for _, l := range locals {
		lines = append(lines, p.pal.key.Sprint("    "+l.Name)+"="+p.value(l.Value))
	}
	return res + strings.Join(lines, ",\n") + "}>"
}

// functionSource returns the text between the function's start and end
// positions in its script.
func functionSource(fn v8.JSFunction) (string, bool) {
	sfi, ok := fn.Shared().Get()
	if !ok {
		return "", false
	}
	script, ok := sfi.Script().Get()
	if !ok {
		return "", false
	}
	src, err := script.Source()
	if err != nil {
		return "", false
	}
	start, ok1 := sfi.StartPosition().Get()
	end, ok2 := sfi.EndPosition().Get()
	r := []rune(src)
	if !ok1 || !ok2 || start < 0 || end < start || end > int64(len(r)) {
		return "", false
	}
	return string(r[start:end]), true
}

// Frame renders a stack frame: an internal frame's marker such as "<exit>",
// or the function's debug line followed by its address. withArgs adds the
// receiver and arguments.
func (p *Printer) Frame(f v8.Frame, withArgs bool) string {
	if k := f.Kind(); k != "" {
		return k
	}
	fn, ok := f.Function().Get()
	if !ok {
		return "<non-function>"
	}
	var args string
	if withArgs {
		args = p.frameArgs(f, fn)
	}
	return p.DebugLine(fn, args) + fmt.Sprintf(" fn=0x%016x", fn.Raw())
}

func (p *Printer) frameArgs(f v8.Frame, fn v8.JSFunction) string {
	var argc int64
	if sfi, ok := fn.Shared().Get(); ok {
		argc = sfi.ParameterCount().Or(0)
	}
	recv, ok := f.Receiver(argc).Get()
	if !ok {
		return ""
	}
	np := p.nested()
	res := "this=" + np.value(recv)
	for i := int64(0); i < argc; i++ {
		arg, ok := f.Arg(i, argc).Get()
		if !ok {
			res += ", " + np.pal.bad.Sprint("???")
			continue
		}
		res += ", " + np.value(arg)
	}
	return res
}
