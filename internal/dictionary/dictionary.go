// Package dictionary holds the built-in catalogue of indicator strings and
// binary header signatures the scan engine matches against.
package dictionary

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/fs"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/shabari/shabari/internal/dictionary/builtin"
	"github.com/shabari/shabari/internal/types"
)

// DefaultFile is the name of the dictionary document inside the builtin FS.
const DefaultFile = "dictionary.yaml"

// MinHeaderLen is the minimum target length for header signatures to be
// consulted at all. Shorter targets never produce a signature match.
const MinHeaderLen = 4

// RawSignature is a header signature as defined in YAML.
type RawSignature struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Offset      int    `yaml:"offset"`
	Bytes       string `yaml:"bytes"` // hex
}

// RawDictionary is the YAML representation of the catalogue.
type RawDictionary struct {
	Standard   []string       `yaml:"standard"`
	HighRisk   []string       `yaml:"high_risk"`
	Signatures []RawSignature `yaml:"signatures"`
}

// Signature is a decoded header signature.
type Signature struct {
	Name        string
	Description string
	Offset      int
	Bytes       []byte
}

// Matches reports whether header carries the signature bytes at its offset.
func (s Signature) Matches(header []byte) bool {
	end := s.Offset + len(s.Bytes)
	if end > len(header) {
		return false
	}
	return bytes.Equal(header[s.Offset:end], s.Bytes)
}

// Entry is one indicator with its tier, used for listings.
type Entry struct {
	Tier  types.Tier
	Value string
}

// Dictionary is the immutable pattern catalogue. All accessors return copies.
type Dictionary struct {
	standard      []string
	highRisk      []string
	signatures    []Signature
	maxPatternLen int
	headerLen     int
}

// Builtin parses the embedded catalogue.
func Builtin() (*Dictionary, error) {
	return Load(builtin.FS(), DefaultFile)
}

// Load reads and validates a dictionary document from fsys.
func Load(fsys fs.FS, name string) (*Dictionary, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}

// Parse decodes YAML into a validated Dictionary.
func Parse(data []byte) (*Dictionary, error) {
	var raw RawDictionary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return New(raw)
}

// New validates raw and builds a Dictionary from it.
func New(raw RawDictionary) (*Dictionary, error) {
	if len(raw.Standard) == 0 && len(raw.HighRisk) == 0 && len(raw.Signatures) == 0 {
		return nil, fmt.Errorf("dictionary is empty")
	}

	d := &Dictionary{
		standard: slices.Clone(raw.Standard),
		highRisk: slices.Clone(raw.HighRisk),
	}
	for i, p := range d.standard {
		if p == "" {
			return nil, fmt.Errorf("standard pattern %d is empty", i)
		}
		d.maxPatternLen = max(d.maxPatternLen, len(p))
	}
	for i, p := range d.highRisk {
		if p == "" {
			return nil, fmt.Errorf("high_risk pattern %d is empty", i)
		}
		d.maxPatternLen = max(d.maxPatternLen, len(p))
	}

	seen := make(map[string]bool, len(raw.Signatures))
	for i, rs := range raw.Signatures {
		if rs.Name == "" {
			return nil, fmt.Errorf("signature %d: missing name", i)
		}
		if seen[rs.Name] {
			return nil, fmt.Errorf("signature %s: duplicate name", rs.Name)
		}
		seen[rs.Name] = true
		if rs.Offset < 0 {
			return nil, fmt.Errorf("signature %s: negative offset %d", rs.Name, rs.Offset)
		}
		b, err := hex.DecodeString(rs.Bytes)
		if err != nil {
			return nil, fmt.Errorf("signature %s: invalid hex: %w", rs.Name, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("signature %s: no bytes", rs.Name)
		}
		d.signatures = append(d.signatures, Signature{
			Name:        rs.Name,
			Description: rs.Description,
			Offset:      rs.Offset,
			Bytes:       b,
		})
		d.headerLen = max(d.headerLen, rs.Offset+len(b))
	}
	d.headerLen = max(d.headerLen, MinHeaderLen)

	return d, nil
}

// Standard returns the standard-tier patterns in catalogue order.
func (d *Dictionary) Standard() []string { return slices.Clone(d.standard) }

// HighRisk returns the high-risk patterns in catalogue order.
func (d *Dictionary) HighRisk() []string { return slices.Clone(d.highRisk) }

// Signatures returns the header signature table.
func (d *Dictionary) Signatures() []Signature {
	out := make([]Signature, len(d.signatures))
	for i, s := range d.signatures {
		s.Bytes = slices.Clone(s.Bytes)
		out[i] = s
	}
	return out
}

// MaxPatternLen is the byte length of the longest textual pattern.
func (d *Dictionary) MaxPatternLen() int { return d.maxPatternLen }

// HeaderLen is how many leading bytes a scan must inspect to evaluate every
// signature. It is never below MinHeaderLen.
func (d *Dictionary) HeaderLen() int { return d.headerLen }

// Len is the total number of textual patterns.
func (d *Dictionary) Len() int { return len(d.standard) + len(d.highRisk) }

// Patterns lists every textual pattern followed by every signature name.
func (d *Dictionary) Patterns() []Entry {
	entries := make([]Entry, 0, d.Len()+len(d.signatures))
	for _, p := range d.standard {
		entries = append(entries, Entry{Tier: types.TierStandard, Value: p})
	}
	for _, p := range d.highRisk {
		entries = append(entries, Entry{Tier: types.TierHighRisk, Value: p})
	}
	for _, s := range d.signatures {
		entries = append(entries, Entry{Tier: types.TierSignature, Value: s.Name})
	}
	return entries
}
