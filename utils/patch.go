package utils

import (
	"reflect"
	"strconv"
	"strings"
)

// PatchColumns maps the set pointer fields of a PATCH DTO to column values.
// The column is the `column` tag if present, else the json name. Nil
// pointers and untagged or `json:"-"` fields are skipped.
func PatchColumns(dto any) map[string]any {
	cols := make(map[string]any)
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return cols
	}
	s := v.Elem()
	for i, t := 0, s.Type(); i < t.NumField(); i++ {
		f := s.Field(i)
		if f.Kind() != reflect.Pointer || f.IsNil() {
			continue
		}
		if col := columnName(t.Field(i)); col != "" {
			cols[col] = f.Elem().Interface()
		}
	}
	return cols
}

func columnName(sf reflect.StructField) string {
	if col := sf.Tag.Get("column"); col != "" {
		return col
	}
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ParseIntDefault parses a non-negative int, falling back to def.
func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}
