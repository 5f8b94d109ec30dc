package bridge

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/dgower/olbridge/internal/mapi"
)

// Attr reads a named property from a remote object, returning def if the
// read fails for any reason: missing property, wrong item subtype, or a
// fault raised by the automation surface. The surface exposes properties
// that throw on access for certain subtypes (a field valid on a meeting
// request but not on a plain message), so every converter field read goes
// through here. Failures are never propagated.
func Attr[T any](obj mapi.Object, name string, def T) T {
	return OptAttr[T](obj, name).UnwrapOr(def)
}

// OptAttr reads a named property as an option: None when the read fails,
// the value is nil, or the value cannot be coerced to T. Converters use
// this for fields the record models as genuinely absent (task status,
// priority) rather than defaulted.
func OptAttr[T any](obj mapi.Object, name string) fn.Option[T] {
	v, err := obj.Get(name)
	if err != nil || v == nil {
		return fn.None[T]()
	}

	out, ok := coerce[T](v)
	if !ok {
		return fn.None[T]()
	}

	return fn.Some(out)
}

// coerce converts a dynamically-typed property value to T. Direct type
// assertion is tried first; the numeric cross-conversions cover backends
// that surface integers as int64 or float64 variants.
func coerce[T any](v any) (T, bool) {
	if out, ok := v.(T); ok {
		return out, true
	}

	var zero T
	switch any(zero).(type) {
	case int:
		switch n := v.(type) {
		case int64:
			return any(int(n)).(T), true
		case int32:
			return any(int(n)).(T), true
		case float64:
			return any(int(n)).(T), true
		}

	case int64:
		switch n := v.(type) {
		case int:
			return any(int64(n)).(T), true
		case float64:
			return any(int64(n)).(T), true
		}

	case time.Time:
		// No cross-conversion: backends hand back time.Time directly
		// and the assertion above already covered it.

	case bool:
		// Some stores surface flags as 0/1.
		switch n := v.(type) {
		case int:
			return any(n != 0).(T), true
		case int64:
			return any(n != 0).(T), true
		}
	}

	return zero, false
}

// childObject reads a property expected to hold a nested object (Sender,
// Attachments owner, ...). Returns nil when the read fails or the value is
// not an object.
func childObject(obj mapi.Object, name string) mapi.Object {
	v, err := obj.Get(name)
	if err != nil {
		return nil
	}

	child, _ := v.(mapi.Object)

	return child
}

// childCollection reads a property expected to hold a collection (Items,
// Folders, Attachments).
func childCollection(obj mapi.Object, name string) (mapi.Collection, error) {
	v, err := obj.Get(name)
	if err != nil {
		return nil, err
	}

	coll, ok := v.(mapi.Collection)
	if !ok {
		return nil, mapi.ErrNoSuchProperty
	}

	return coll, nil
}

// unpack extracts an option's value and presence flag.
func unpack[T any](o fn.Option[T]) (T, bool) {
	var (
		out T
		ok  bool
	)
	o.WhenSome(func(v T) {
		out = v
		ok = true
	})

	return out, ok
}

// optPtr converts an option to the pointer form used by the JSON records,
// where absence serializes as null.
func optPtr[T any](o fn.Option[T]) *T {
	var out *T
	o.WhenSome(func(v T) {
		out = &v
	})

	return out
}
