package utils

import (
	"reflect"
	"strings"
)

// NormalizeDTO trims string and *string fields of a pointer-to-struct DTO.
// Fields tagged `normalize:"lower"` are lower-cased as well. Nil pointers
// stay nil so GORM won't update them.
func NormalizeDTO(dto any) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return
	}
	t := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() {
			continue
		}
		lower := t.Field(i).Tag.Get("normalize") == "lower"
		switch {
		case f.Kind() == reflect.String:
			f.SetString(normalizeString(f.String(), lower))
		case f.Kind() == reflect.Ptr && !f.IsNil() && f.Elem().Kind() == reflect.String:
			f.Elem().SetString(normalizeString(f.Elem().String(), lower))
		case f.Kind() == reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				if el := f.Index(j); el.Kind() == reflect.Struct && el.CanAddr() {
					NormalizeDTO(el.Addr().Interface())
				}
			}
		}
	}
}

func normalizeString(s string, lower bool) string {
	s = strings.TrimSpace(s)
	if lower {
		s = strings.ToLower(s)
	}
	return s
}
