// Package attrs packs leftover contact properties into the attributes column.
//
// The output looks like a flat JSON object of strings, {"TEL":"123", "NOTE":"x"},
// and is valid JSON: names and values are encoded as JSON string literals.
// It is meant for people reading the CSV, not as a stable machine contract;
// duplicate property names produce duplicate keys.
package attrs

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/smileynet/vcf2csv/internal/vcard"
)

// Exclusions maps a property name to whether it is left out of the column.
type Exclusions map[string]bool

// NewExclusions returns an exclusion set holding names.
func NewExclusions(names ...string) Exclusions {
	ex := make(Exclusions, len(names))
	for _, n := range names {
		ex[n] = true
	}
	return ex
}

// DefaultExclusions are the properties never worth repeating in the column.
func DefaultExclusions() Exclusions {
	return NewExclusions("EMAIL", "VERSION", "PRODID")
}

// Serialize renders props as {"name":"value", ...} in list order, skipping
// excluded names and valueless properties. An empty result is "{}".
func Serialize(props []vcard.Property, ex Exclusions) string {
	entries := make([]string, 0, len(props))
	for _, p := range props {
		if ex[p.Name] {
			continue
		}
		value, ok := p.Text()
		if !ok {
			continue
		}
		entries = append(entries, quote(p.Name)+":"+quote(value))
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

// quote encodes s as a JSON string without HTML escaping, so "<" and "&"
// stay readable.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
