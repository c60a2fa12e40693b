// Package paging reconciles the two pagination conventions the finance API
// accepts (page/pageSize and limit/offset) and interprets the pagination
// metadata it returns.
package paging

import (
	"net/url"
	"strconv"
)

// Params is a pagination request. Nil fields are unset.
type Params struct {
	Page     *int // 1-based
	PageSize *int
	Limit    *int
	Offset   *int
}

// Meta is the pagination block of a list response. Nil fields were absent.
type Meta struct {
	TotalItems *int
	TotalPages *int
	HasNext    *bool
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// ForPage builds params for a 1-based page of the given size.
func ForPage(page, size int) Params {
	return Params{Page: Int(page), PageSize: Int(size)}
}

// ForWindow builds params in the legacy limit/offset form.
func ForWindow(limit, offset int) Params {
	return Params{Limit: Int(limit), Offset: Int(offset)}
}

// Reconcile fills in whichever convention the caller left out.
//
// Values derived from page/pageSize are computed first and only fill unset
// legacy fields, so an explicit limit or offset always travels unchanged.
// Values derived from limit/offset then fill whatever is still unset. A zero
// or missing divisor skips the derivation that would need it.
func Reconcile(in Params) Params {
	out := Params{
		Page:     copyInt(in.Page),
		PageSize: copyInt(in.PageSize),
		Limit:    copyInt(in.Limit),
		Offset:   copyInt(in.Offset),
	}

	if positive(out.PageSize) {
		if out.Limit == nil {
			out.Limit = Int(*out.PageSize)
		}
		if out.Page != nil && out.Offset == nil {
			page := *out.Page
			if page < 1 {
				page = 1
			}
			size := *out.PageSize
			out.Offset = Int((page - 1) * size)
		}
	}

	if positive(out.Limit) {
		if out.PageSize == nil {
			out.PageSize = Int(*out.Limit)
		}
		if out.Offset != nil && out.Page == nil {
			offset := *out.Offset
			if offset < 0 {
				offset = 0
			}
			limit := *out.Limit
			out.Page = Int(offset/limit + 1)
		}
	}

	return out
}

// Requested is the number of records the params ask for, or 0 when unknown.
func (p Params) Requested() int {
	switch {
	case positive(p.PageSize):
		return *p.PageSize
	case positive(p.Limit):
		return *p.Limit
	default:
		return 0
	}
}

// Encode writes the set fields into v using the API's query keys.
func (p Params) Encode(v url.Values) {
	setInt(v, "page", p.Page)
	setInt(v, "pageSize", p.PageSize)
	setInt(v, "limit", p.Limit)
	setInt(v, "offset", p.Offset)
}

// HasMore reports whether another page should be requested.
//
// A page shorter than requested (including an empty one) always ends the
// listing. Otherwise an explicit hasNext flag decides, and without one a full
// page is taken as a sign that more may exist.
func HasMore(meta Meta, returned, requested int) bool {
	if returned == 0 || requested <= 0 || returned < requested {
		return false
	}
	if meta.HasNext != nil {
		return *meta.HasNext
	}
	return true
}

func positive(p *int) bool { return p != nil && *p > 0 }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func setInt(v url.Values, key string, p *int) {
	if p != nil {
		v.Set(key, strconv.Itoa(*p))
	}
}
