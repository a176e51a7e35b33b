// Package path resolves dot-notation scope paths against arbitrary state graphs.
//
// Segments address struct fields (by json tag name, then Go field name; embedded structs
// by their type name, without flattening promoted fields), map keys
// (converted to the map's key type) and slice or array indices. Pointers and
// interfaces are dereferenced transparently, so callers never need to know the
// container kind of an intermediate node.
package path

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aretw0/statekit/pkg/domain"
)

// Parse splits a dot path into segments. "." parses to the root path.
func Parse(p string) (domain.Path, error) {
	if p == domain.Root {
		return domain.Path{}, nil
	}
	if p == "" {
		return nil, &domain.PathResolutionError{Path: p, Err: domain.ErrInvalidPath}
	}
	segs := strings.Split(p, ".")
	for _, s := range segs {
		if s == "" {
			return nil, &domain.PathResolutionError{Path: p, Err: domain.ErrInvalidPath}
		}
	}
	return domain.Path(segs), nil
}

// Resolve returns the value addressed by p inside root.
func Resolve(root any, p string) (any, error) {
	segs, err := Parse(p)
	if err != nil {
		return nil, err
	}
	v, err := Lookup(reflect.ValueOf(root), segs)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, nil
	}
	return v.Interface(), nil
}

// Lookup walks segs from root. The returned value keeps its static type
// (an interface-typed map entry is returned as the interface, not its element).
func Lookup(root reflect.Value, segs domain.Path) (reflect.Value, error) {
	cur := root
	for i, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return reflect.Value{}, &domain.PathResolutionError{
				Path:    segs[:i+1].String(),
				Segment: seg,
				Err:     domain.ErrPathNotFound,
			}
		}
		cur = next
	}
	return cur, nil
}

func step(v reflect.Value, seg string) (reflect.Value, bool) {
	v = Indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	switch v.Kind() {
	case reflect.Struct:
		f, ok := FieldByName(v.Type(), seg)
		if !ok {
			return reflect.Value{}, false
		}
		return v.Field(f.Index[0]), true
	case reflect.Map:
		if v.IsNil() {
			return reflect.Value{}, false
		}
		key, ok := MapKey(v.Type().Key(), seg)
		if !ok {
			return reflect.Value{}, false
		}
		elem := v.MapIndex(key)
		return elem, elem.IsValid()
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= v.Len() {
			return reflect.Value{}, false
		}
		return v.Index(idx), true
	default:
		return reflect.Value{}, false
	}
}

// Indirect dereferences pointers and interfaces until it reaches a concrete value.
// A nil pointer or interface yields the zero reflect.Value.
func Indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// SegmentName is the path segment used for a struct field: its json tag name when
// present, otherwise the Go field name. Fields tagged json:"-" keep their Go name.
func SegmentName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// FieldByName finds a direct exported field by segment name, falling back to the Go field name.
// Promoted fields are not matched: an embedded struct is addressed through its own field name,
// the same way the diff engine reports it.
func FieldByName(t reflect.Type, seg string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && SegmentName(f) == seg {
			return f, true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && f.Name == seg {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

// MapKey converts a path segment into a value of the map key type.
func MapKey(keyType reflect.Type, seg string) (reflect.Value, bool) {
	switch keyType.Kind() {
	case reflect.String:
		return reflect.ValueOf(seg).Convert(keyType), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(seg, 10, keyType.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(seg, 10, keyType.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(seg, keyType.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Bool:
		b, err := strconv.ParseBool(seg)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(b).Convert(keyType), true
	case reflect.Interface:
		if reflect.TypeOf(seg).Implements(keyType) {
			return reflect.ValueOf(seg).Convert(keyType), true
		}
	}
	return reflect.Value{}, false
}

// KeySegment renders a map key as a path segment.
func KeySegment(k reflect.Value) string {
	k = Indirect(k)
	if !k.IsValid() {
		return "<nil>"
	}
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(k.Float(), 'g', -1, k.Type().Bits())
	case reflect.Bool:
		return strconv.FormatBool(k.Bool())
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return k.Type().String()
}
