package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON values used to fingerprint
// graphs. Only String, Int, Bool, Array and Object implement it. There is no
// null and no float: fingerprints must be deterministic.
type Value interface {
	jsonValue()
}

// String is a JSON string.
type String string

func (String) jsonValue() {}

// Int is a JSON integer.
type Int int64

func (Int) jsonValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) jsonValue() {}

// Array is a JSON array.
type Array []Value

func (Array) jsonValue() {}

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) jsonValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
