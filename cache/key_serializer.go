package cache

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// Key joins segments with KeySeparator.
func Key(segments ...string) string {
	return strings.Join(segments, KeySeparator)
}

// Prefix returns the key prefix shared by every key that starts with segments.
// The trailing separator keeps "book::GetByID::1" from matching "book::GetByID::10".
func Prefix(segments ...string) string {
	return Key(segments...) + KeySeparator
}

// defaultKeySerializer renders arguments as plain data so keys are identical
// across processes. Strings are quoted, struct fields with zero values are
// omitted and map entries are sorted.
type defaultKeySerializer struct {
	namespace string
}

// NewDefaultKeySerializer returns a serializer producing "Method::arg::arg" keys.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// NewNamespacedKeySerializer returns a serializer producing "namespace::Method::arg" keys.
func NewNamespacedKeySerializer(namespace string) KeySerializer {
	return &defaultKeySerializer{namespace: namespace}
}

// SerializeKey builds a cache key from method name and args.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	segments := make([]string, 0, len(args)+2)
	if s.namespace != "" {
		segments = append(segments, s.namespace)
	}
	segments = append(segments, method)

	for _, arg := range args {
		var b strings.Builder
		writeValue(&b, reflect.ValueOf(arg))
		segments = append(segments, b.String())
	}
	return Key(segments...)
}

var textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

func writeValue(b *strings.Builder, v reflect.Value) {
	if !v.IsValid() {
		b.WriteString("nil")
		return
	}

	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		b.WriteString("nil")
		return
	}

	if v.Type().Implements(textMarshalerType) && v.CanInterface() {
		if text, err := v.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			b.WriteString(strconv.Quote(string(text)))
			return
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		writeValue(b, v.Elem())

	case reflect.String:
		b.WriteString(strconv.Quote(v.String()))

	case reflect.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(v.Int(), 10))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(v.Uint(), 10))

	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))

	case reflect.Complex64, reflect.Complex128:
		b.WriteString(strconv.FormatComplex(v.Complex(), 'g', -1, 128))

	case reflect.Slice, reflect.Array:
		// nil and empty slices produce the same key
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, v.Index(i))
		}
		b.WriteByte(']')

	case reflect.Map:
		entries := make([]string, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			var kb strings.Builder
			writeValue(&kb, iter.Key())
			kb.WriteByte('=')
			writeValue(&kb, iter.Value())
			entries = append(entries, kb.String())
		}
		sort.Strings(entries)
		b.WriteByte('{')
		b.WriteString(strings.Join(entries, ","))
		b.WriteByte('}')

	case reflect.Struct:
		writeStruct(b, v)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// only stable within this process
		if v.IsNil() {
			b.WriteString("nil")
			return
		}
		fmt.Fprintf(b, "%s:%#x", v.Kind(), v.Pointer())

	default:
		b.WriteString(v.Type().String())
	}
}

func writeStruct(b *strings.Builder, v reflect.Value) {
	t := v.Type()
	b.WriteString(t.Name())
	b.WriteByte('{')

	first := true
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := v.Field(i)
		if fv.IsZero() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(field.Name)
		b.WriteByte(':')
		writeValue(b, fv)
	}
	b.WriteByte('}')
}
