package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Port is one entry of the port reference table.
type Port struct {
	Code    string `yaml:"code"`
	Place   string `yaml:"place"`
	Country string `yaml:"country"`
}

// Batch is the hand-off file produced by the spreadsheet export: the rows to
// register and the port table used to complete them.
type Batch struct {
	Records []Record `yaml:"records"`
	Ports   []Port   `yaml:"ports"`
}

// LoadBatch reads a YAML (or JSON) batch file and returns its records joined
// with the port table.
func LoadBatch(path string) ([]Record, error) {
	b, err := ReadBatch(path)
	if err != nil {
		return nil, err
	}
	return b.Joined(), nil
}

// ReadBatch reads a batch file without joining it.
func ReadBatch(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read batch: %w", err)
	}
	return DecodeBatch(data)
}

// ParseBatch decodes a batch document and joins its records with its ports.
func ParseBatch(data []byte) ([]Record, error) {
	b, err := DecodeBatch(data)
	if err != nil {
		return nil, err
	}
	return b.Joined(), nil
}

// DecodeBatch decodes a batch document.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("failed to parse batch: %w", err)
	}
	if len(b.Records) == 0 {
		return Batch{}, fmt.Errorf("batch has no records")
	}
	return b, nil
}

// Joined returns the records joined with the port table.
func (b Batch) Joined() []Record {
	return Join(b.Records, b.Ports)
}

// DuplicatePorts returns the normalized port codes listed more than once, in
// order of first appearance. Join uses the first entry of each.
func (b Batch) DuplicatePorts() []string {
	seen := make(map[string]int, len(b.Ports))
	var dups []string
	for _, p := range b.Ports {
		key := PortKey(p.Code)
		if key == "" {
			continue
		}
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, key)
		}
	}
	return dups
}

// Join left-joins records with ports on the normalized port code. Place and
// Country already set on a record win over the port table. Records without a
// Row are numbered as spreadsheet rows (header on row 1).
func Join(records []Record, ports []Port) []Record {
	index := make(map[string]Port, len(ports))
	for _, p := range ports {
		key := PortKey(p.Code)
		if key == "" {
			continue
		}
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = p
	}

	out := make([]Record, len(records))
	for i, r := range records {
		if r.Row == 0 {
			r.Row = i + 2
		}
		if p, ok := index[PortKey(r.PortCode)]; ok {
			if strings.TrimSpace(r.Place) == "" {
				r.Place = strings.TrimSpace(p.Place)
			}
			if strings.TrimSpace(r.Country) == "" {
				r.Country = strings.TrimSpace(p.Country)
			}
		}
		out[i] = r
	}
	return out
}
