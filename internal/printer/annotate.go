package printer

import (
	"v8heap/internal/disasm"
	"v8heap/internal/v8"
)

// Namer describes heap references embedded in machine code: functions by
// name, strings by a short quoted preview, other objects by type.
func (p *Printer) Namer() disasm.Namer {
	return func(w uint64) (string, bool) {
		o, ok := p.h.Object(w).Get()
		if !ok {
			return "", false
		}
		obj, err := o.Decode()
		if err != nil {
			return "", false
		}
		switch x := obj.(type) {
		case v8.JSFunction:
			return "<JSFunction " + x.DisplayName() + ">", true
		case v8.String:
			text, err := x.Text()
			if err != nil {
				return "", false
			}
			return v8.Quote(text, p.opts.Length*2), true
		case v8.Oddball:
			return x.Name(), true
		case v8.HeapNumber:
			if f, ok := x.Value().Get(); ok {
				return "<Number: " + v8.FormatDouble(f) + ">", true
			}
		case v8.Code:
			return "<Code>", true
		case v8.SharedFunctionInfo:
			if name, err := x.ProperName(); err == nil && name != "" {
				return "<SharedFunctionInfo " + name + ">", true
			}
			return "<SharedFunctionInfo>", true
		}
		name, err := o.TypeName()
		if err != nil {
			return "", false
		}
		return "<" + name + ">", true
	}
}

// WordReader reads target words for PC-relative literal pools.
func (p *Printer) WordReader() disasm.WordReader {
	return p.h.Reader().ReadWord
}
