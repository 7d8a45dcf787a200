package engine

import (
	"errors"
	"fmt"
	htmltemplate "html/template"
	"reflect"
	"strings"
	texttemplate "text/template"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The helper set mirrors what template authors expect from common
// templating ecosystems: string casing, collection construction, join,
// default, and escaping. The text and HTML variants differ only in how
// "safe" is interpreted.

var (
	titleCaser = cases.Title(language.Und)
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

func textFuncs() texttemplate.FuncMap {
	return texttemplate.FuncMap(sharedFuncs(func(v any) any {
		return stringify(v)
	}))
}

func htmlFuncs() htmltemplate.FuncMap {
	return htmltemplate.FuncMap(sharedFuncs(func(v any) any {
		return htmltemplate.HTML(stringify(v))
	}))
}

func sharedFuncs(safe func(any) any) map[string]any {
	return map[string]any{
		"list":       listOf,
		"map":        mapOf,
		"dict":       mapOf,
		"upper":      func(v any) string { return strings.ToUpper(stringify(v)) },
		"lower":      func(v any) string { return strings.ToLower(stringify(v)) },
		"title":      func(v any) string { return titleCaser.String(stringify(v)) },
		"capitalize": capitalize,
		"trim":       func(v any) string { return strings.TrimSpace(stringify(v)) },
		"strip":      func(v any) string { return strings.TrimSpace(stringify(v)) },
		"replace":    replaceAll,
		"default":    defaultValue,
		"join":       join,
		"escape":     func(v any) string { return htmltemplate.HTMLEscapeString(stringify(v)) },
		"safe":       safe,
	}
}

func stringify(v any) string {
	return fmt.Sprint(v)
}

func listOf(values ...any) []any {
	return values
}

func mapOf(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, errors.New("map helper requires key/value pairs")
	}
	result := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, errors.New("map helper keys must be strings")
		}
		result[key] = values[i+1]
	}
	return result, nil
}

// capitalize lowercases the whole string, then uppercases the first rune.
// The casers handle locale-independent one-to-many mappings that a plain
// unicode.ToUpper would get wrong.
func capitalize(v any) string {
	lowered := lowerCaser.String(stringify(v))
	if lowered == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(lowered)
	if first == utf8.RuneError && size == 0 {
		return ""
	}
	return upperCaser.String(string(first)) + lowered[size:]
}

func replaceAll(old, new, v any) string {
	return strings.ReplaceAll(stringify(v), stringify(old), stringify(new))
}

func join(sep, values any) (string, error) {
	collection := reflect.ValueOf(values)
	if !collection.IsValid() {
		return "", errors.New("join helper requires an array or slice")
	}
	switch collection.Kind() {
	case reflect.Array, reflect.Slice:
	default:
		return "", errors.New("join helper requires an array or slice")
	}

	parts := make([]string, collection.Len())
	for i := 0; i < collection.Len(); i++ {
		parts[i] = stringify(collection.Index(i).Interface())
	}
	return strings.Join(parts, stringify(sep)), nil
}

func defaultValue(fallback, v any) any {
	if isFalsy(v) {
		return fallback
	}
	return v
}

func isFalsy(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.String:
		return rv.Len() == 0
	case reflect.Array, reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Invalid:
		return true
	}
	return false
}
