// Package normalize maps the finance API's loosely shaped JSON payloads onto
// the core model. Every function is total: unrecognized shapes produce zero
// values and never an error.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"praondefoi/internal/paging"
)

// List extracts the record list from a bare array or from an object
// exposing it under data/Data/items/Items.
func List(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		if inner, ok := Lookup(v, envelopeKeys); ok {
			if list, ok := inner.([]any); ok {
				return list
			}
			// data may itself be an envelope: {"data": {"items": [...]}}
			if obj, ok := inner.(map[string]any); ok {
				if nested, ok := Lookup(obj, envelopeKeys); ok {
					if list, ok := nested.([]any); ok {
						return list
					}
				}
			}
		}
	}
	return nil
}

// Unwrap returns the object a single-entity response carries, looking inside
// a data/Data envelope when present.
func Unwrap(raw any) map[string]any {
	obj, ok := Object(raw)
	if !ok {
		return nil
	}
	if inner, ok := Lookup(obj, envelopeKeys); ok {
		if innerObj, ok := Object(inner); ok {
			return innerObj
		}
	}
	return obj
}

// Meta reads the pagination block of a list response.
func Meta(raw any) paging.Meta {
	obj, ok := Object(raw)
	if !ok {
		return paging.Meta{}
	}
	block, ok := Lookup(obj, paginationKeys)
	if !ok {
		return paging.Meta{}
	}
	m, ok := Object(block)
	if !ok {
		return paging.Meta{}
	}

	return paging.Meta{
		TotalItems: optionalInt(m, metaTotalItemsKeys),
		TotalPages: optionalInt(m, metaTotalPagesKeys),
		HasNext:    boolean(m, metaHasNextKeys),
	}
}

// optionalInt is like integer but keeps absence distinct from zero.
func optionalInt(obj map[string]any, keys []string) *int {
	v, ok := Lookup(obj, keys)
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		if _, err := decimal.NewFromString(strings.TrimSpace(s)); err != nil {
			return nil
		}
	} else if !IsNumeric(v) {
		return nil
	}
	return paging.Int(int(Number(v).IntPart()))
}
