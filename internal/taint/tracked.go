// Package taint implements the runtime taint-tracking engine: tracked
// string-like values, per-request analysis scopes, propagation of provenance
// ranges through derivation operations, and evidence decomposition for the
// reporting layer.
package taint

import (
	"github.com/xkilldash9x/taintflow/internal/registry"
)

// Kind discriminates the value families the engine tracks.
type Kind int

const (
	// KindInvalid marks the zero Tracked value; operations reject it.
	KindInvalid Kind = iota
	// KindText is an immutable text value.
	KindText
	// KindBytes is a raw byte buffer.
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// Tracked pairs a string-like value with the handle under which its taint
// state is registered. The handle is the explicit, stable identity the
// registry is keyed by; a zero handle means the value was never tainted.
// Tracked values are immutable: every derivation operation returns a new one.
type Tracked struct {
	kind   Kind
	data   []byte
	handle registry.Handle
}

// Text wraps a string as a tracked text value with no taint state.
func Text(s string) Tracked {
	return Tracked{kind: KindText, data: []byte(s)}
}

// Bytes wraps a byte buffer as a tracked bytes value with no taint state.
// The buffer is copied so later caller mutations cannot desynchronize the
// registered ranges from the content they describe.
func Bytes(b []byte) Tracked {
	data := make([]byte, len(b))
	copy(data, b)
	return Tracked{kind: KindBytes, data: data}
}

// Kind returns the value family.
func (t Tracked) Kind() Kind { return t.kind }

// Len returns the value's length in bytes. All range offsets in the engine
// are byte offsets.
func (t Tracked) Len() int { return len(t.data) }

// String returns the value content as a string.
func (t Tracked) String() string { return string(t.data) }

// RawBytes returns a copy of the value content.
func (t Tracked) RawBytes() []byte {
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out
}

// Handle returns the registry identity, or zero when untainted.
func (t Tracked) Handle() registry.Handle { return t.handle }
