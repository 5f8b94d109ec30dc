package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgower/olbridge/internal/mapi"
)

// propObject is a property bag whose listed names fault on access, the
// way automation surfaces raise on subtype-invalid properties.
type propObject struct {
	props  map[string]any
	faults map[string]bool
}

var _ mapi.Object = (*propObject)(nil)

func (p *propObject) Get(name string) (any, error) {
	if p.faults[name] {
		return nil, errors.New("property raised")
	}
	v, ok := p.props[name]
	if !ok {
		return nil, mapi.ErrNoSuchProperty
	}
	return v, nil
}

func (p *propObject) Set(string, any) error            { return nil }
func (p *propObject) Call(string, ...any) (any, error) { return nil, nil }
func (p *propObject) Release()                         {}

func TestAttrDefaults(t *testing.T) {
	obj := &propObject{
		props: map[string]any{
			"Subject": "hello",
			"Count":   int64(7),
			"Flag":    1,
			"Nil":     nil,
		},
		faults: map[string]bool{"Cursed": true},
	}

	require.Equal(t, "hello", Attr(obj, "Subject", "fallback"))

	// Missing, faulting, and nil properties all yield the default.
	require.Equal(t, "fallback", Attr(obj, "Missing", "fallback"))
	require.Equal(t, "fallback", Attr(obj, "Cursed", "fallback"))
	require.Equal(t, "fallback", Attr(obj, "Nil", "fallback"))

	// Wrong type yields the default rather than a panic.
	require.Equal(t, 0, Attr(obj, "Subject", 0))
}

func TestAttrNumericCoercion(t *testing.T) {
	obj := &propObject{props: map[string]any{
		"AsInt64":   int64(9),
		"AsInt32":   int32(4),
		"AsFloat":   float64(3),
		"IntFlag":   1,
		"ZeroFlag":  0,
		"TrueValue": true,
	}}

	require.Equal(t, 9, Attr(obj, "AsInt64", 0))
	require.Equal(t, 4, Attr(obj, "AsInt32", 0))
	require.Equal(t, 3, Attr(obj, "AsFloat", 0))
	require.Equal(t, int64(9), Attr(obj, "AsInt64", int64(0)))

	// Flags surfaced as integers read as booleans.
	require.True(t, Attr(obj, "IntFlag", false))
	require.False(t, Attr(obj, "ZeroFlag", true))
	require.True(t, Attr(obj, "TrueValue", false))
}

func TestOptAttrAbsence(t *testing.T) {
	obj := &propObject{
		props:  map[string]any{"Status": 2},
		faults: map[string]bool{"Cursed": true},
	}

	v, ok := unpack(OptAttr[int](obj, "Status"))
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = unpack(OptAttr[int](obj, "Missing"))
	require.False(t, ok)

	_, ok = unpack(OptAttr[int](obj, "Cursed"))
	require.False(t, ok)
}
