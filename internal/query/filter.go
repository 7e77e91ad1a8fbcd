package query

import (
	"strings"

	"terrascope/server/internal/models"
)

// Filters are the optional user-supplied constraints on the listing
// population. Nil pointers and sentinel strings mean "no constraint".
type Filters struct {
	Search   string
	Zone     string
	MinPrice *float64
	MaxPrice *float64
	MinM2    *float64
	MaxM2    *float64
	Sold     *bool
}

// Predicate is a conjunctive WHERE clause with positional arguments,
// assembled one independent condition at a time.
type Predicate struct {
	clauses []string
	args    []interface{}
}

func (p *Predicate) And(clause string, args ...interface{}) *Predicate {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
	return p
}

// SQL returns the clause body, suitable after a WHERE keyword.
func (p *Predicate) SQL() string {
	return strings.Join(p.clauses, " AND ")
}

func (p *Predicate) Args() []interface{} {
	return p.args
}

// noConstraint reports whether a text filter value should be ignored.
// Empty strings and the filter widgets' sentinel options are not errors,
// they mean the user asked for everything.
func noConstraint(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "all" || v == "any"
}

// BuildPredicate composes the fixed domain restriction (land plots only,
// never blacklisted) with whichever filters are present. Every listing a
// read query returns satisfies the domain restriction regardless of input.
func BuildPredicate(f Filters) *Predicate {
	p := &Predicate{}
	p.And("property_type = ?", models.LandPlotType)
	p.And("blacklisted = 0")

	if !noConstraint(f.Search) {
		term := "%" + strings.TrimSpace(f.Search) + "%"
		p.And("(LOWER(title) LIKE LOWER(?) OR LOWER(address) LIKE LOWER(?) OR LOWER(description_short) LIKE LOWER(?))",
			term, term, term)
	}
	if !noConstraint(f.Zone) {
		p.And("zone = ?", f.Zone)
	}
	if f.MinPrice != nil {
		p.And("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		p.And("price <= ?", *f.MaxPrice)
	}
	if f.MinM2 != nil {
		p.And("m2 >= ?", *f.MinM2)
	}
	if f.MaxM2 != nil {
		p.And("m2 <= ?", *f.MaxM2)
	}
	if f.Sold != nil {
		p.And("sold = ?", *f.Sold)
	}

	return p
}

// Mappable narrows the predicate to listings with usable coordinates.
// Zero-valued coordinates are geocoder misses, not positions.
func (p *Predicate) Mappable() *Predicate {
	p.And("latitude IS NOT NULL")
	p.And("longitude IS NOT NULL")
	p.And("latitude != 0")
	p.And("longitude != 0")
	return p
}
