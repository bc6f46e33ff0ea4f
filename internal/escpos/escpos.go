// Package escpos wraps rendered tickets in the small subset of ESC/POS
// commands understood by 80mm thermal printers.
package escpos

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/layout"
)

const (
	esc = 0x1B
	gs  = 0x1D
)

// Fixed command sequences.
var (
	cmdInit       = []byte{esc, '@'}           // ESC @
	cmdAlignLeft  = []byte{esc, 'a', 0x00}     // ESC a 0
	cmdNormalMode = []byte{esc, '!', 0x00}     // ESC ! 0
	cmdPartialCut = []byte{gs, 'V', 'A', 0x00} // GS V A 0
)

// Codepage selects how ticket text is turned into bytes.
type Codepage string

const (
	UTF8  Codepage = "utf8"
	CP858 Codepage = "cp858" // PC858, Latin-1 with the euro sign
	CP437 Codepage = "cp437"
)

// ParseCodepage maps configuration names onto a Codepage.
func ParseCodepage(name string) (Codepage, error) {
	switch strings.ToLower(name) {
	case "", "utf8", "utf-8":
		return UTF8, nil
	case "cp858":
		return CP858, nil
	case "cp437":
		return CP437, nil
	}
	return "", fmt.Errorf("unsupported codepage %q", name)
}

// table returns the ESC t argument and encoder for single byte codepages.
func (c Codepage) table() (byte, *charmap.Charmap, bool) {
	switch c {
	case CP858:
		return 19, charmap.CodePage858, true
	case CP437:
		return 0, charmap.CodePage437, true
	}
	return 0, nil, false
}

type Options struct {
	Codepage Codepage
	// Cut appends a partial cut after the feed.
	Cut bool
	// FeedLines is the number of lines fed before the cut. Zero disables
	// the feed command.
	FeedLines int
}

// Payload is an encoded print job. It is never modified after creation.
type Payload struct {
	data []byte
}

// NewPayload copies b into a Payload.
func NewPayload(b []byte) Payload {
	return Payload{data: append([]byte(nil), b...)}
}

// Bytes returns a copy of the encoded job.
func (p Payload) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

func (p Payload) Len() int { return len(p.data) }

type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) (Encoder, error) {
	if opts.FeedLines < 0 || opts.FeedLines > 255 {
		return Encoder{}, fmt.Errorf("feed lines %d out of range [0, 255]", opts.FeedLines)
	}
	if _, err := ParseCodepage(string(opts.Codepage)); err != nil {
		return Encoder{}, err
	}
	return Encoder{opts: opts}, nil
}

// Encode produces the byte stream for ticket. The same ticket and options
// always give the same bytes.
func (e Encoder) Encode(ticket layout.Ticket) (Payload, error) {
	if len(ticket.Lines) == 0 {
		return Payload{}, fmt.Errorf("ticket has no lines")
	}
	body := e.encodeText(strings.Join(ticket.Lines, "\n") + "\n")

	buf := e.prologue()
	buf = append(buf, body...)
	buf = append(buf, e.epilogue()...)
	return Payload{data: buf}, nil
}

func (e Encoder) prologue() []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, cmdInit...)
	buf = append(buf, cmdAlignLeft...)
	buf = append(buf, cmdNormalMode...)
	if n, _, ok := e.opts.Codepage.table(); ok {
		buf = append(buf, esc, 't', n)
	}
	return buf
}

func (e Encoder) epilogue() []byte {
	var buf []byte
	if e.opts.FeedLines > 0 {
		buf = append(buf, esc, 'd', byte(e.opts.FeedLines)) // ESC d n
	}
	if e.opts.Cut {
		buf = append(buf, cmdPartialCut...)
	}
	return buf
}

// encodeText converts text to the configured codepage. Runes the codepage
// cannot represent are printed as '?'.
func (e Encoder) encodeText(text string) []byte {
	_, cm, ok := e.opts.Codepage.table()
	if !ok {
		return []byte(text)
	}
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := cm.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
