// Package convert drives contacts through extraction, attribute packing and
// row output.
package convert

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/smileynet/vcf2csv/internal/attrs"
	"github.com/smileynet/vcf2csv/internal/csvout"
	"github.com/smileynet/vcf2csv/internal/logging"
	"github.com/smileynet/vcf2csv/internal/vcard"
)

// ErrMissingRequired matches any *MissingPropertyError.
var ErrMissingRequired = errors.New("convert: missing required property")

// Policy decides what happens to a contact without an email or a name.
type Policy string

const (
	PolicySkip  Policy = "skip"  // Log, drop the contact, keep going.
	PolicyAbort Policy = "abort" // Stop the run with the error.
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyAbort:
		return p, nil
	}
	return "", fmt.Errorf("convert: policy must be %q or %q, got %q", PolicyAbort, PolicySkip, s)
}

// MissingPropertyError reports a contact lacking a required property or its value.
// Err is vcard.ErrNotFound or vcard.ErrNoValue.
type MissingPropertyError struct {
	Line     int // Line of the contact's BEGIN:VCARD, 0 if unknown.
	Property string
	Err      error
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("convert: contact at line %d: %v", e.Line, e.Err)
}

func (e *MissingPropertyError) Unwrap() []error {
	return []error{ErrMissingRequired, e.Err}
}

// RowWriter receives assembled rows.
type RowWriter interface {
	Write(r csvout.Record) error
}

// Stats summarizes a run.
type Stats struct {
	Contacts    int // Elements read from the sequence, including malformed ones.
	Written     int
	Skipped     int // Dropped for a missing email or name.
	ParseErrors int
}

// Converter turns contacts into rows.
type Converter struct {
	policy     Policy
	exclusions attrs.Exclusions
	emailProp  string
	nameProp   string
	log        *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// New returns a Converter with the skip policy, default exclusions, EMAIL and
// FN as required properties and a discarding logger.
func New(opts ...Option) *Converter {
	c := &Converter{
		policy:     PolicySkip,
		exclusions: attrs.DefaultExclusions(),
		emailProp:  "EMAIL",
		nameProp:   "FN",
		log:        slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithPolicy sets the missing-property policy.
func WithPolicy(p Policy) Option {
	return func(c *Converter) { c.policy = p }
}

// WithExclusions sets the properties left out of the attributes column.
func WithExclusions(ex attrs.Exclusions) Option {
	return func(c *Converter) { c.exclusions = ex }
}

// WithRequired overrides the property names pulled into the email and name columns.
func WithRequired(email, name string) Option {
	return func(c *Converter) {
		c.emailProp = email
		c.nameProp = name
	}
}

// WithLogger sets the logger used for per-contact diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.log = l }
}

// Record extracts the email and name from contact and packs what is left.
// The contact is modified: both properties are removed from it.
func (c *Converter) Record(contact *vcard.Contact) (csvout.Record, error) {
	email, err := vcard.Extract(contact, c.emailProp)
	if err != nil {
		return csvout.Record{}, &MissingPropertyError{Line: contact.Line, Property: c.emailProp, Err: err}
	}
	name, err := vcard.Extract(contact, c.nameProp)
	if err != nil {
		return csvout.Record{}, &MissingPropertyError{Line: contact.Line, Property: c.nameProp, Err: err}
	}
	return csvout.Record{
		Email:      email,
		Name:       name,
		Attributes: attrs.Serialize(contact.Properties, c.exclusions),
	}, nil
}

// Run consumes contacts in order and writes one row per usable contact.
// Parse errors and, under PolicySkip, contacts missing a required property are
// logged and skipped. A write failure, a non-parse error from the sequence, a
// missing property under PolicyAbort or cancellation of ctx ends the run; the
// returned Stats still describe the rows written so far.
func (c *Converter) Run(ctx context.Context, contacts iter.Seq2[*vcard.Contact, error], out RowWriter) (Stats, error) {
	var stats Stats
	for contact, err := range contacts {
		if cerr := ctx.Err(); cerr != nil {
			return stats, fmt.Errorf("convert: %w", cerr)
		}
		stats.Contacts++

		if err != nil {
			var pe *vcard.ParseError
			if !errors.As(err, &pe) {
				return stats, fmt.Errorf("convert: reading contacts: %w", err)
			}
			stats.ParseErrors++
			c.log.Error("skipping malformed contact", slog.Int("line", pe.Line), logging.Err(err))
			continue
		}

		rec, err := c.Record(contact)
		if err != nil {
			if c.policy == PolicyAbort {
				return stats, err
			}
			stats.Skipped++
			c.log.Warn("skipping contact", slog.Int("line", contact.Line), slog.String("property", missingProp(err)), logging.Err(err))
			continue
		}

		if err := out.Write(rec); err != nil {
			return stats, fmt.Errorf("convert: writing row: %w", err)
		}
		stats.Written++
		c.log.Debug("wrote contact", slog.Int("line", contact.Line), slog.String("email", rec.Email))
	}
	return stats, nil
}

func missingProp(err error) string {
	var me *MissingPropertyError
	if errors.As(err, &me) {
		return me.Property
	}
	return ""
}
