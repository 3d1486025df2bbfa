package vcard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds a single physical line. Unfolded PHOTO blobs in some
// exports run to several megabytes.
const maxLineSize = 16 << 20

// ParseError reports a malformed card. It only affects the card it names;
// the decoder resumes at the next BEGIN:VCARD.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcard: line %d: %s", e.Line, e.Msg)
}

// logical is one unfolded content line and the physical line it started on.
type logical struct {
	no   int
	text string
}

// Decoder reads contacts from a vCard stream, one card per Next call.
type Decoder struct {
	sc      *bufio.Scanner
	lineNo  int
	pending *logical  // lookahead consumed while unfolding
	unread  []logical // lines pushed back for the next card
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{sc: sc}
}

// Next returns the next contact. Malformed cards are returned as a
// *ParseError with a nil contact; any other error is fatal for the stream.
// io.EOF is returned once the input is exhausted.
func (d *Decoder) Next() (*Contact, error) {
	var (
		card    *Contact
		cardErr *ParseError
		stray   int // first line of a run of content outside any card
	)
	for {
		ln, ok := d.readLine()
		if !ok {
			if err := d.sc.Err(); err != nil {
				return nil, fmt.Errorf("vcard: reading input: %w", err)
			}
			if card != nil {
				return nil, &ParseError{Line: card.Line, Msg: "unterminated card (missing END:VCARD)"}
			}
			if stray > 0 {
				return nil, strayError(stray)
			}
			return nil, io.EOF
		}

		name, value, hasColon := splitLine(ln.text)
		marker := ""
		if hasColon && strings.EqualFold(value, "VCARD") {
			marker = strings.ToUpper(name)
		}

		if card == nil {
			if marker == "BEGIN" {
				if stray > 0 {
					d.unread = append(d.unread, ln)
					return nil, strayError(stray)
				}
				card = &Contact{Line: ln.no}
			} else if stray == 0 {
				stray = ln.no
			}
			continue
		}

		switch {
		case marker == "BEGIN":
			d.unread = append(d.unread, ln)
			return nil, &ParseError{Line: card.Line, Msg: "BEGIN:VCARD before END:VCARD"}
		case marker == "END":
			if cardErr != nil {
				return nil, cardErr
			}
			return card, nil
		case !hasColon:
			if cardErr == nil {
				cardErr = &ParseError{Line: ln.no, Msg: fmt.Sprintf("missing ':' in %q", clip(ln.text))}
			}
		case value == "":
			card.Properties = append(card.Properties, Valueless(name))
		default:
			card.Properties = append(card.Properties, Prop(name, value))
		}
	}
}

// All returns the remaining contacts as a single-use sequence. Parse errors
// are yielded alongside a nil contact; the sequence stops after EOF or after
// yielding a fatal read error.
func (d *Decoder) All() iter.Seq2[*Contact, error] {
	return func(yield func(*Contact, error) bool) {
		for {
			c, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(c, err) {
				return
			}
			var pe *ParseError
			if err != nil && !errors.As(err, &pe) {
				return
			}
		}
	}
}

// readLine returns the next unfolded, non-blank line.
func (d *Decoder) readLine() (logical, bool) {
	if n := len(d.unread); n > 0 {
		ln := d.unread[n-1]
		d.unread = d.unread[:n-1]
		return ln, true
	}

	var cur logical
	have := false
	if d.pending != nil {
		cur, have = *d.pending, true
		d.pending = nil
	}
	for d.sc.Scan() {
		d.lineNo++
		text := strings.TrimSuffix(d.sc.Text(), "\r")
		switch {
		case text == "":
			if have {
				return cur, true
			}
		case have && (text[0] == ' ' || text[0] == '\t'):
			cur.text += text[1:]
		case have:
			d.pending = &logical{no: d.lineNo, text: text}
			return cur, true
		default:
			cur, have = logical{no: d.lineNo, text: text}, true
		}
	}
	return cur, have
}

// splitLine splits "NAME;PARAM=x:value" into name and value, dropping any
// parameters. Colons inside quoted parameter values do not split.
func splitLine(s string) (name, value string, ok bool) {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ':':
			if quoted {
				continue
			}
			name = s[:i]
			if j := strings.IndexByte(name, ';'); j >= 0 {
				name = name[:j]
			}
			return strings.TrimSpace(name), s[i+1:], true
		}
	}
	return "", "", false
}

func strayError(line int) *ParseError {
	return &ParseError{Line: line, Msg: "content outside BEGIN:VCARD/END:VCARD"}
}

func clip(s string) string {
	const limit = 40
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
