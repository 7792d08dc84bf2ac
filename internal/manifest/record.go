// Package manifest holds the shipping-manifest records fed to the form
// driver and the per-row outcomes it produces.
package manifest

import (
	"regexp"
	"strings"
)

// Sentinels are the placeholder values the target form uses for unknown ports.
type Sentinels struct {
	// UnknownCode is the port code meaning "port not listed".
	UnknownCode string `yaml:"unknown_code" json:"unknown_code"`
	// UnknownPlace replaces the place of origin for UnknownCode rows.
	UnknownPlace string `yaml:"unknown_place" json:"unknown_place"`
	// UnknownCountry replaces the country for UnknownCode rows.
	UnknownCountry string `yaml:"unknown_country" json:"unknown_country"`
	// OtherTokens are searched in suggestion labels when UnknownCode has no
	// prefix match.
	OtherTokens []string `yaml:"other_tokens" json:"other_tokens"`
}

// DefaultSentinels returns the values used by the customs form.
func DefaultSentinels() Sentinels {
	return Sentinels{
		UnknownCode:    "ZZZZZ",
		UnknownPlace:   "OTROS",
		UnknownCountry: "701",
		OtherTokens:    []string{"OTROS", "OTHER"},
	}
}

// Record is one manifest entry.
type Record struct {
	// Row is the source row number, used only for reporting.
	Row int `yaml:"row" json:"row"`

	TripID      string `yaml:"trip_id" json:"trip_id"`
	ParentTitle string `yaml:"parent_title" json:"parent_title"`
	Vessel      string `yaml:"vessel" json:"vessel"`
	Place       string `yaml:"place" json:"place"`
	Date        string `yaml:"date" json:"date"`
	PortCode    string `yaml:"port_code" json:"port_code"`
	Country     string `yaml:"country" json:"country"`
}

var tripIDStrip = regexp.MustCompile(`[^A-Za-z0-9-]`)

// NormalizeTripID drops a float suffix left by spreadsheet exports and every
// character outside [A-Za-z0-9-].
func NormalizeTripID(v string) string {
	s := strings.TrimSpace(v)
	s = strings.ReplaceAll(s, ".0", "")
	return tripIDStrip.ReplaceAllString(s, "")
}

// PortKey is the join key for port codes.
func PortKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize returns a copy of r with trimmed fields, a cleaned trip id, an
// upper-cased port code and, for the unknown-code sentinel, the unknown
// place and country substituted.
func (r Record) Normalize(s Sentinels) Record {
	out := Record{
		Row:         r.Row,
		TripID:      NormalizeTripID(r.TripID),
		ParentTitle: strings.TrimSpace(r.ParentTitle),
		Vessel:      strings.TrimSpace(r.Vessel),
		Place:       strings.TrimSpace(r.Place),
		Date:        strings.TrimSpace(r.Date),
		PortCode:    PortKey(r.PortCode),
		Country:     strings.TrimSpace(r.Country),
	}
	if s.UnknownCode != "" && out.PortCode == PortKey(s.UnknownCode) {
		out.Place = s.UnknownPlace
		out.Country = s.UnknownCountry
	}
	return out
}

// IsUnknownPort reports whether the record carries the unknown-code sentinel.
func (r Record) IsUnknownPort(s Sentinels) bool {
	return s.UnknownCode != "" && PortKey(r.PortCode) == PortKey(s.UnknownCode)
}
