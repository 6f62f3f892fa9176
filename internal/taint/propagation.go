package taint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/taintflow/api/schemas"
)

// Errors returned by derivation operations. They are produced by the
// underlying operation itself, before any taint bookkeeping, so the
// instrumented and uninstrumented paths fail identically.
var (
	// ErrOperandKind signals an operation over incompatible value kinds,
	// e.g. concatenating text with raw bytes.
	ErrOperandKind = errors.New("taint: mismatched operand kinds")
	// ErrSliceBounds signals slice offsets outside the value.
	ErrSliceBounds = errors.New("taint: slice bounds out of range")
)

// concatValues performs the plain concatenation with no bookkeeping.
func concatValues(a, b Tracked) (Tracked, error) {
	if a.kind == KindInvalid || a.kind != b.kind {
		return Tracked{}, fmt.Errorf("%w: %s + %s", ErrOperandKind, a.kind, b.kind)
	}
	data := make([]byte, 0, len(a.data)+len(b.data))
	data = append(data, a.data...)
	data = append(data, b.data...)
	return Tracked{kind: a.kind, data: data}, nil
}

// Concat derives a new value from a + b. The functional result is always the
// plain concatenation; when the unit has quota and at least one operand is
// tainted, the result receives a fresh handle whose range sequence is a's
// ranges followed by b's ranges shifted by len(a).
func (s *Scope) Concat(a, b Tracked) (Tracked, error) {
	out, err := concatValues(a, b)
	if err != nil {
		return Tracked{}, err
	}
	if !s.gate.HasQuota() {
		return out, nil
	}

	aRanges := s.registry.Lookup(a.handle)
	bRanges := s.registry.Lookup(b.handle)
	if len(aRanges) == 0 && len(bRanges) == 0 {
		return out, nil
	}

	ranges := make([]schemas.TaintRange, 0, len(aRanges)+len(bRanges))
	ranges = append(ranges, aRanges...)
	ranges = append(ranges, schemas.ShiftRanges(bRanges, a.Len())...)

	out.handle = s.engine.nextHandle()
	s.registry.Register(out.handle, s.engine.capRanges(ranges))
	s.gate.Spend()
	return out, nil
}

// Join derives a new value by interleaving sep between parts. All operands
// must share one kind. Separators are treated as untainted literal content:
// they advance the offset arithmetic but never contribute ranges, even when
// the separator value itself is tainted. Zero-length parts contribute no
// ranges and do not disturb the offsets of later parts.
func (s *Scope) Join(sep Tracked, parts []Tracked) (Tracked, error) {
	if sep.kind == KindInvalid {
		return Tracked{}, fmt.Errorf("%w: %s separator", ErrOperandKind, sep.kind)
	}
	for _, p := range parts {
		if p.kind != sep.kind {
			return Tracked{}, fmt.Errorf("%w: joining %s with %s separator", ErrOperandKind, p.kind, sep.kind)
		}
	}

	var data []byte
	var ranges []schemas.TaintRange
	offset := 0
	for i, p := range parts {
		if i > 0 {
			data = append(data, sep.data...)
			offset += sep.Len()
		}
		data = append(data, p.data...)
		if s.gate.HasQuota() {
			ranges = append(ranges, schemas.ShiftRanges(s.registry.Lookup(p.handle), offset)...)
		}
		offset += p.Len()
	}

	out := Tracked{kind: sep.kind, data: data}
	if len(ranges) == 0 {
		return out, nil
	}
	out.handle = s.engine.nextHandle()
	s.registry.Register(out.handle, s.engine.capRanges(ranges))
	s.gate.Spend()
	return out, nil
}

// Slice derives v[i:j]. Every range overlapping the window survives as its
// intersection, re-based so that offset i becomes 0; ranges with an empty
// intersection are dropped. Out-of-range offsets fail identically whether or
// not the operands are tainted.
func (s *Scope) Slice(v Tracked, i, j int) (Tracked, error) {
	if v.kind == KindInvalid {
		return Tracked{}, fmt.Errorf("%w: %s operand", ErrOperandKind, v.kind)
	}
	if i < 0 || j < i || j > v.Len() {
		return Tracked{}, fmt.Errorf("%w: [%d:%d] of length %d", ErrSliceBounds, i, j, v.Len())
	}

	data := make([]byte, j-i)
	copy(data, v.data[i:j])
	out := Tracked{kind: v.kind, data: data}
	if !s.gate.HasQuota() {
		return out, nil
	}

	var ranges []schemas.TaintRange
	for _, r := range s.registry.Lookup(v.handle) {
		if clipped, ok := r.Intersect(i, j); ok {
			ranges = append(ranges, clipped)
		}
	}
	if len(ranges) == 0 {
		return out, nil
	}
	out.handle = s.engine.nextHandle()
	s.registry.Register(out.handle, s.engine.capRanges(ranges))
	s.gate.Spend()
	return out, nil
}

// Format derives a text value by interpolating args into a printf-style
// format string. Provenance survives for tracked arguments whose rendered
// text is byte-identical to their raw content (plain %s or %v of a tracked
// value); any other rendering is a transformation the engine does not see
// through, so those arguments contribute no ranges. Literal chunks and
// untracked arguments advance the offset arithmetic only.
func (s *Scope) Format(format string, args ...any) (Tracked, error) {
	var b strings.Builder
	var ranges []schemas.TaintRange
	argIdx := 0

	appendArg := func(verb string) {
		if argIdx >= len(args) {
			// Mirror fmt's diagnostic for a verb with no argument.
			b.WriteString("%!" + verb[len(verb)-1:] + "(MISSING)")
			return
		}
		arg := args[argIdx]
		argIdx++

		tv, isTracked := arg.(Tracked)
		raw := arg
		if isTracked {
			raw = string(tv.data)
		}
		chunk := fmt.Sprintf(verb, raw)
		if isTracked && chunk == string(tv.data) && s.gate.HasQuota() {
			ranges = append(ranges, schemas.ShiftRanges(s.registry.Lookup(tv.handle), b.Len())...)
		}
		b.WriteString(chunk)
	}

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			b.WriteByte('%')
			i += 2
			continue
		}
		// Capture the verb: flags, width, precision, and the verb letter.
		j := i + 1
		for j < len(format) && strings.ContainsRune("+-# 0123456789.", rune(format[j])) {
			j++
		}
		if j >= len(format) {
			b.WriteString(format[i:])
			break
		}
		j++
		appendArg(format[i:j])
		i = j
	}

	if argIdx < len(args) {
		// Mirror fmt's trailing EXTRA diagnostic for surplus arguments.
		b.WriteString("%!(EXTRA " + describeExtras(args[argIdx:]) + ")")
	}

	out := Tracked{kind: KindText, data: []byte(b.String())}
	if len(ranges) == 0 {
		return out, nil
	}
	out.handle = s.engine.nextHandle()
	s.registry.Register(out.handle, s.engine.capRanges(ranges))
	s.gate.Spend()
	return out, nil
}

// describeExtras renders surplus Format arguments the way fmt does:
// type=value, comma separated.
func describeExtras(extras []any) string {
	parts := make([]string, 0, len(extras))
	for _, e := range extras {
		if tv, ok := e.(Tracked); ok {
			e = string(tv.data)
		}
		parts = append(parts, fmt.Sprintf("%T=%v", e, e))
	}
	return strings.Join(parts, ", ")
}
