package convert

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"testing"

	"github.com/smileynet/vcf2csv/internal/attrs"
	"github.com/smileynet/vcf2csv/internal/csvout"
	"github.com/smileynet/vcf2csv/internal/vcard"
)

// mockRowWriter records rows and can fail on demand.
type mockRowWriter struct {
	rows []csvout.Record
	err  error
}

func (m *mockRowWriter) Write(r csvout.Record) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, r)
	return nil
}

func contactsFrom(input string) iter.Seq2[*vcard.Contact, error] {
	return vcard.NewDecoder(strings.NewReader(input)).All()
}

func TestRun_Scenarios(t *testing.T) {
	t.Run("email name and one extra property", func(t *testing.T) {
		// Given a contact with EMAIL, FN and TEL
		input := "BEGIN:VCARD\nVERSION:3.0\nEMAIL:a@b.com\nFN:Ann\nTEL:123\nEND:VCARD\n"
		out := &mockRowWriter{}

		// When it is converted
		stats, err := New().Run(context.Background(), contactsFrom(input), out)

		// Then one row carries TEL in the attributes
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		want := csvout.Record{Email: "a@b.com", Name: "Ann", Attributes: `{"TEL":"123"}`}
		if len(out.rows) != 1 || out.rows[0] != want {
			t.Fatalf("rows = %+v, want [%+v]", out.rows, want)
		}
		if stats.Written != 1 || stats.Contacts != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("missing FN is skipped and processing continues", func(t *testing.T) {
		input := "BEGIN:VCARD\nEMAIL:x@y.com\nEND:VCARD\n" +
			"BEGIN:VCARD\nEMAIL:a@b.com\nFN:Ann\nEND:VCARD\n"
		out := &mockRowWriter{}

		stats, err := New().Run(context.Background(), contactsFrom(input), out)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(out.rows) != 1 || out.rows[0].Email != "a@b.com" {
			t.Fatalf("rows = %+v, want only a@b.com", out.rows)
		}
		if stats.Skipped != 1 || stats.Written != 1 || stats.Contacts != 2 {
			t.Errorf("stats = %+v, want Skipped=1 Written=1 Contacts=2", stats)
		}
	})

	t.Run("no other properties yields empty attributes", func(t *testing.T) {
		input := "BEGIN:VCARD\nFN:Ann\nEMAIL:a@b.com\nEND:VCARD\n"
		out := &mockRowWriter{}

		if _, err := New().Run(context.Background(), contactsFrom(input), out); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(out.rows) != 1 || out.rows[0].Attributes != "{}" {
			t.Fatalf("rows = %+v, want attributes {}", out.rows)
		}
	})

	t.Run("malformed block is reported and the next contact converted", func(t *testing.T) {
		input := "BEGIN:VCARD\nEMAIL:bad@b.com\nthis line is broken\nEND:VCARD\n" +
			"BEGIN:VCARD\nEMAIL:a@b.com\nFN:Ann\nEND:VCARD\n"
		var logs bytes.Buffer
		log := slog.New(slog.NewTextHandler(&logs, nil))
		out := &mockRowWriter{}

		stats, err := New(WithLogger(log)).Run(context.Background(), contactsFrom(input), out)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(out.rows) != 1 || out.rows[0].Email != "a@b.com" {
			t.Fatalf("rows = %+v", out.rows)
		}
		if stats.ParseErrors != 1 {
			t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
		}
		if !strings.Contains(logs.String(), "skipping malformed contact") {
			t.Errorf("logs = %q, want malformed contact diagnostic", logs.String())
		}
	})
}

func TestRun_AbortPolicy(t *testing.T) {
	// Given a contact without EMAIL followed by a good one
	input := "BEGIN:VCARD\nFN:Ann\nEND:VCARD\n" +
		"BEGIN:VCARD\nEMAIL:a@b.com\nFN:Ann\nEND:VCARD\n"
	out := &mockRowWriter{}

	// When the abort policy is active
	stats, err := New(WithPolicy(PolicyAbort)).Run(context.Background(), contactsFrom(input), out)

	// Then the run stops at the first contact
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("Run() error = %v, want ErrMissingRequired", err)
	}
	if !errors.Is(err, vcard.ErrNotFound) {
		t.Errorf("Run() error = %v, want to wrap vcard.ErrNotFound", err)
	}
	var me *MissingPropertyError
	if !errors.As(err, &me) || me.Property != "EMAIL" || me.Line != 1 {
		t.Errorf("MissingPropertyError = %+v, want EMAIL at line 1", me)
	}
	if len(out.rows) != 0 || stats.Written != 0 {
		t.Errorf("rows = %+v, want none", out.rows)
	}
}

func TestRun_ValuelessRequiredProperty(t *testing.T) {
	input := "BEGIN:VCARD\nEMAIL:a@b.com\nFN:\nEND:VCARD\n"

	_, err := New(WithPolicy(PolicyAbort)).Run(context.Background(), contactsFrom(input), &mockRowWriter{})
	if !errors.Is(err, vcard.ErrNoValue) {
		t.Fatalf("Run() error = %v, want vcard.ErrNoValue", err)
	}
}

func TestRun_WriteErrorIsFatal(t *testing.T) {
	errDisk := errors.New("disk full")
	input := strings.Repeat("BEGIN:VCARD\nEMAIL:a@b.com\nFN:Ann\nEND:VCARD\n", 3)

	stats, err := New().Run(context.Background(), contactsFrom(input), &mockRowWriter{err: errDisk})
	if !errors.Is(err, errDisk) {
		t.Fatalf("Run() error = %v, want disk full", err)
	}
	if stats.Contacts != 1 {
		t.Errorf("Contacts = %d, want 1 (stopped at first write)", stats.Contacts)
	}
}

func TestRun_FatalSequenceError(t *testing.T) {
	errRead := errors.New("read failed")
	seq := func(yield func(*vcard.Contact, error) bool) {
		yield(nil, errRead)
	}

	_, err := New().Run(context.Background(), seq, &mockRowWriter{})
	if !errors.Is(err, errRead) {
		t.Fatalf("Run() error = %v, want read failed", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	input := "BEGIN:VCARD\nEMAIL:a@b.com\nFN:Ann\nEND:VCARD\n"

	_, err := New().Run(ctx, contactsFrom(input), &mockRowWriter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRecord_ExclusionsAndDuplicates(t *testing.T) {
	// Given a contact with a second EMAIL and an excluded PRODID
	c := &vcard.Contact{Properties: []vcard.Property{
		vcard.Prop("PRODID", "-//Apple Inc.//iOS 17//EN"),
		vcard.Prop("EMAIL", "first@b.com"),
		vcard.Prop("FN", "Ann"),
		vcard.Prop("EMAIL", "second@b.com"),
		vcard.Prop("ORG", "Acme"),
		vcard.Valueless("NOTE"),
	}}

	// When a record is built with the default exclusions
	rec, err := New().Record(c)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Then only ORG survives in the attributes
	if rec.Email != "first@b.com" {
		t.Errorf("Email = %q, want first@b.com", rec.Email)
	}
	if rec.Attributes != `{"ORG":"Acme"}` {
		t.Errorf("Attributes = %s, want {\"ORG\":\"Acme\"}", rec.Attributes)
	}
}

func TestRecord_CustomOptions(t *testing.T) {
	c := &vcard.Contact{Properties: []vcard.Property{
		vcard.Prop("X-MAIL", "a@b.com"),
		vcard.Prop("N", "Lee;Ann"),
		vcard.Prop("VERSION", "4.0"),
	}}

	rec, err := New(WithRequired("X-MAIL", "N"), WithExclusions(attrs.NewExclusions())).Record(c)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Name != "Lee;Ann" || rec.Attributes != `{"VERSION":"4.0"}` {
		t.Errorf("Record() = %+v", rec)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"abort", "skip"} {
		if _, err := ParsePolicy(s); err != nil {
			t.Errorf("ParsePolicy(%q) error = %v", s, err)
		}
	}
	if _, err := ParsePolicy("continue"); err == nil {
		t.Error("ParsePolicy(continue) should return error")
	}
}
