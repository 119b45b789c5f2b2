package mdtest

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/danielledeleo/mdtest/internal/parse"
)

// DecodeMark stores the arguments of m in the struct pointed to by v.
//
// DecodeMark uses the following rules to decode arguments:
//
//   - Keyword arguments are matched to struct fields by the `md` tag, or by field
//     name (case-insensitive). An unknown keyword is an error.
//   - Positional arguments fill the fields tagged `md:"<name>,positional"`, in
//     field order. Surplus positional arguments are an error.
//   - Strings are decoded from string literals and references.
//   - Numbers and booleans are decoded from their literals, or from strings using
//     strconv.
//   - Slices are decoded from sequences; a single value decodes into a slice of
//     one element.
//   - Fields implementing Unmarshaler decode themselves.
//
// Errors are of type Error with code ErrCodeMark.
func DecodeMark(m Mark, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return MakeError(ErrCodeUsage, "DecodeMark requires non-nil pointer to struct argument")
	}
	info := getStructInfo(rv.Elem().Type())
	data := make(map[string]any, len(m.Kwargs)+len(m.Args))
	for key, val := range m.Kwargs {
		fi := findField(info, key)
		if fi == nil {
			return markError(m, fmt.Sprintf("unexpected keyword argument %q", key))
		}
		data[key] = val
	}
	positional := info.positional()
	if len(m.Args) > len(positional) {
		return markError(m, fmt.Sprintf("takes %d positional arguments but %d were given", len(positional), len(m.Args)))
	}
	for i, val := range m.Args {
		key := positional[i].key()
		if _, dup := data[key]; dup {
			return markError(m, fmt.Sprintf("got multiple values for argument %q", key))
		}
		data[key] = val
	}
	if err := decodeStruct(data, rv.Elem()); err != nil {
		return markError(m, err.Error())
	}
	return nil
}

func markError(m Mark, msg string) error {
	return MakeError(ErrCodeMark, fmt.Sprintf("mark %q: %s", m.Raw, msg))
}

// Unmarshaler is the interface implemented by types that can decode a metadata
// value or mark argument of themselves. The input is a string, bool, int, float64,
// Ref, nil or []any.
type Unmarshaler interface {
	UnmarshalMD(value any) error
}

// structInfo holds cached metadata about a struct type.
type structInfo struct {
	fields []fieldInfo
}

// fieldInfo holds metadata about a single struct field.
type fieldInfo struct {
	name       string // Go field name
	index      int    // field index
	tag        string // md tag name (empty if not specified)
	positional bool   // positional option
	ignore     bool   // "-" tag
}

func (fi *fieldInfo) key() string {
	if fi.tag != "" {
		return fi.tag
	}
	return strings.ToLower(fi.name)
}

func (info *structInfo) positional() []*fieldInfo {
	var fields []*fieldInfo
	for i := range info.fields {
		if fi := &info.fields[i]; fi.positional && !fi.ignore {
			fields = append(fields, fi)
		}
	}
	return fields
}

// structInfoCache caches struct metadata to avoid repeated reflection.
var structInfoCache sync.Map // map[reflect.Type]*structInfo

// getStructInfo returns cached struct metadata for the given type.
func getStructInfo(t reflect.Type) *structInfo {
	if cached, ok := structInfoCache.Load(t); ok {
		return cached.(*structInfo)
	}

	info := &structInfo{
		fields: make([]fieldInfo, 0, t.NumField()),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fi := fieldInfo{
			name:  field.Name,
			index: i,
		}

		tag := field.Tag.Get("md")
		if tag == "-" {
			fi.ignore = true
		} else if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				fi.tag = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "positional" {
					fi.positional = true
				}
			}
		}

		info.fields = append(info.fields, fi)
	}

	structInfoCache.Store(t, info)
	return info
}

// decode recursively populates v from a metadata value or mark argument.
func decode(data any, v reflect.Value) error {
	// Handle nil data
	if data == nil {
		return nil
	}

	// Allocate pointer if needed
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	// Check for Unmarshaler interface on addressable values
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalMD(data)
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		v.Set(reflect.ValueOf(data))
		return nil

	case reflect.String:
		return decodeString(data, v)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decodeInt(data, v)

	case reflect.Float32, reflect.Float64:
		return decodeFloat(data, v)

	case reflect.Bool:
		return decodeBool(data, v)

	case reflect.Slice:
		return decodeSlice(data, v)

	case reflect.Struct:
		return decodeStruct(data, v)

	default:
		return &DecodeTypeError{
			Value: typeNameOf(data),
			Type:  v.Type(),
		}
	}
}

// decodeString decodes a string literal or a reference into a Go string.
func decodeString(data any, v reflect.Value) error {
	switch s := data.(type) {
	case string:
		v.SetString(s)
	case Ref:
		v.SetString(string(s))
	default:
		return &DecodeTypeError{
			Value: typeNameOf(data),
			Type:  v.Type(),
		}
	}
	return nil
}

// decodeInt decodes an integer literal or a numeric string into a Go int type.
func decodeInt(data any, v reflect.Value) error {
	switch n := data.(type) {
	case int:
		if v.OverflowInt(int64(n)) {
			return &DecodeTypeError{Value: fmt.Sprintf("int %d", n), Type: v.Type()}
		}
		v.SetInt(int64(n))
		return nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, v.Type().Bits())
		if err != nil {
			return &DecodeTypeError{Value: fmt.Sprintf("string %q", n), Type: v.Type()}
		}
		v.SetInt(i)
		return nil
	}
	return &DecodeTypeError{
		Value: typeNameOf(data),
		Type:  v.Type(),
	}
}

// decodeFloat decodes a number literal or a numeric string into a Go float type.
func decodeFloat(data any, v reflect.Value) error {
	switch n := data.(type) {
	case float64:
		v.SetFloat(n)
		return nil
	case int:
		v.SetFloat(float64(n))
		return nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), v.Type().Bits())
		if err != nil {
			return &DecodeTypeError{Value: fmt.Sprintf("string %q", n), Type: v.Type()}
		}
		v.SetFloat(f)
		return nil
	}
	return &DecodeTypeError{
		Value: typeNameOf(data),
		Type:  v.Type(),
	}
}

// decodeBool decodes a boolean literal or string into a Go bool.
// Strings accepted: "true"/"false", "True"/"False", "1"/"0".
func decodeBool(data any, v reflect.Value) error {
	switch b := data.(type) {
	case bool:
		v.SetBool(b)
		return nil
	case string:
		switch strings.TrimSpace(b) {
		case "true", "True", "1":
			v.SetBool(true)
			return nil
		case "false", "False", "0":
			v.SetBool(false)
			return nil
		}
		return &DecodeTypeError{Value: fmt.Sprintf("string %q", b), Type: v.Type()}
	}
	return &DecodeTypeError{
		Value: typeNameOf(data),
		Type:  v.Type(),
	}
}

// decodeSlice decodes a sequence into a Go slice. A string is split at top-level
// commas, any other single value becomes a slice of one element.
func decodeSlice(data any, v reflect.Value) error {
	var list []any
	switch d := data.(type) {
	case []any:
		list = d
	case string:
		for _, item := range parse.SplitTopLevel(d, ',') {
			list = append(list, item)
		}
	default:
		list = []any{data}
	}

	slice := reflect.MakeSlice(v.Type(), len(list), len(list))
	for i, item := range list {
		if err := decode(item, slice.Index(i)); err != nil {
			if dte, ok := err.(*DecodeTypeError); ok {
				dte.Path = fmt.Sprintf("[%d]%s", i, dte.Path)
			}
			return err
		}
	}
	v.Set(slice)
	return nil
}

// decodeStruct decodes a key/value mapping into a Go struct. Unknown keys are skipped.
func decodeStruct(data any, v reflect.Value) error {
	dict, ok := data.(map[string]any)
	if !ok {
		return &DecodeTypeError{
			Value: typeNameOf(data),
			Type:  v.Type(),
		}
	}

	info := getStructInfo(v.Type())

	for key, val := range dict {
		fi := findField(info, key)
		if fi == nil {
			// Unknown field, skip it
			continue
		}

		field := v.Field(fi.index)
		if err := decode(val, field); err != nil {
			if dte, ok := err.(*DecodeTypeError); ok {
				dte.Path = "." + key + dte.Path
			}
			return err
		}
	}
	return nil
}

// findField finds a struct field matching the given key.
// Matches by tag name first, then by field name (case-insensitive).
func findField(info *structInfo, key string) *fieldInfo {
	keyLower := strings.ToLower(key)

	// First pass: match by tag
	for i := range info.fields {
		fi := &info.fields[i]
		if fi.ignore {
			continue
		}
		if fi.tag == key {
			return fi
		}
	}

	// Second pass: match by field name (case-insensitive)
	for i := range info.fields {
		fi := &info.fields[i]
		if fi.ignore {
			continue
		}
		if fi.tag == "" && strings.ToLower(fi.name) == keyLower {
			return fi
		}
	}

	return nil
}

// typeNameOf returns a descriptive name for a decoded value.
func typeNameOf(data any) string {
	switch data.(type) {
	case string:
		return "string"
	case Ref:
		return "reference"
	case []any:
		return "sequence"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", data)
	}
}

// DecodeTypeError describes a type mismatch during decoding.
type DecodeTypeError struct {
	Value string       // Description of the decoded value
	Type  reflect.Type // Target Go type
	Path  string       // Path to the value (e.g., ".raises[1]")
}

func (e *DecodeTypeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cannot decode %s into Go value of type %s at %s", e.Value, e.Type, e.Path)
	}
	return fmt.Sprintf("cannot decode %s into Go value of type %s", e.Value, e.Type)
}

// --- Fragment metadata -----------------------------------------------------

// fragmentMeta is the typed view on the metadata keys with a meaning of their own.
type fragmentMeta struct {
	Name       string   `md:"name"`
	Mark       string   `md:"mark"`
	Fixtures   []string `md:"fixtures"`
	Case       string   `md:"case"`
	Subprocess lenient  `md:"subprocess"`
}

// lenient is a bool which decodes anything it does not recognize as true to false.
type lenient bool

func (l *lenient) UnmarshalMD(value any) error {
	switch v := value.(type) {
	case bool:
		*l = lenient(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			*l = true
		default:
			*l = false
		}
	default:
		*l = false
	}
	return nil
}

func decodeMeta(args map[string]string) fragmentMeta {
	data := make(map[string]any, len(args))
	for key, val := range args {
		data[key] = val
	}
	var meta fragmentMeta
	// every field decodes from any string
	_ = decodeStruct(data, reflect.ValueOf(&meta).Elem())
	return meta
}
