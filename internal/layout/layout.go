// Package layout renders an order into the fixed-width text block printed on
// a thermal ticket. It performs no I/O.
package layout

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

const (
	DefaultTimeFormat = "02/01/2006 15:04"

	thankYou  = "Gracias por su visita!"
	feedLines = 3
)

// Ticket is the rendered text of one order. Every line is exactly Width
// display columns wide.
type Ticket struct {
	Width       int
	Lines       []string
	GeneratedAt time.Time
}

// Text joins the lines with newlines, without a trailing newline.
func (t Ticket) Text() string {
	return strings.Join(t.Lines, "\n")
}

// Engine renders tickets for one printer width. The zero Location means
// time.Local and a nil Now means time.Now.
type Engine struct {
	Width      int
	Location   *time.Location
	TimeFormat string
	Now        func() time.Time
}

// NewEngine builds an Engine from the ticket configuration.
func NewEngine(cfg model.TicketConfig) (Engine, error) {
	if err := checkWidth(cfg.Width); err != nil {
		return Engine{}, err
	}
	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Engine{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	format := cfg.TimeFormat
	if format == "" {
		format = DefaultTimeFormat
	}
	return Engine{Width: cfg.Width, Location: loc, TimeFormat: format}, nil
}

func checkWidth(width int) error {
	if width < model.MinWidth || width > model.MaxWidth {
		return fmt.Errorf("ticket width %d out of range [%d, %d]", width, model.MinWidth, model.MaxWidth)
	}
	return nil
}

// Render lays out order. Lines longer than the width are cut at the width,
// shorter ones are padded with spaces on the right.
func (e Engine) Render(order model.Order) (Ticket, error) {
	if err := checkWidth(e.Width); err != nil {
		return Ticket{}, err
	}
	now := e.now()
	w := e.Width

	lines := make([]string, 0, 16+2*order.ItemCount())
	add := func(s string) { lines = append(lines, fit(s, w)) }

	add(center(clean(order.RestaurantName()), w))
	add(strings.Repeat("=", w))
	add("MESA: " + clean(order.Table()))
	if c := clean(order.Customer()); c != "" {
		add("CLIENTE: " + c)
	}
	add("FECHA: " + now.Format(e.timeFormat()))
	add(strings.Repeat("-", w))
	add(center("PEDIDO:", w))

	for _, item := range order.Items() {
		add(fmt.Sprintf("%dx %s", item.Quantity, clean(item.ProductName)))
		add(fmt.Sprintf("   %s EUR x %d = %s EUR", money(item.UnitPrice), item.Quantity, money(item.TotalPrice)))
	}

	add(strings.Repeat("-", w))
	add(center("TOTAL: "+money(order.Total())+" EUR", w))
	add("")
	add(center(thankYou, w))
	for range feedLines {
		add("")
	}

	return Ticket{Width: w, Lines: lines, GeneratedAt: now}, nil
}

func (e Engine) now() time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

func (e Engine) timeFormat() string {
	if e.TimeFormat == "" {
		return DefaultTimeFormat
	}
	return e.TimeFormat
}

// columns measures display width independently of the host locale, so
// ambiguous-width runes such as é or € always count as one column.
var columns = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

// money formats a currency value with two decimals, rounding half up.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// center prefixes text with floor((width-len)/2) spaces.
func center(text string, width int) string {
	pad := (width - columns.StringWidth(text)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + text
}

// fit truncates or right-pads s to exactly width columns.
func fit(s string, width int) string {
	s = columns.Truncate(s, width, "")
	return columns.FillRight(s, width)
}

// clean drops control characters so user text can never smuggle printer
// commands or extra lines into the ticket. Text is composed to NFC and
// zero-width marks left over are dropped.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case unicode.IsControl(r), unicode.In(r, unicode.Mn, unicode.Me, unicode.Cf):
			return -1
		}
		return r
	}, norm.NFC.String(strings.TrimSpace(s)))
}
