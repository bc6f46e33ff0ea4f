package layout

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

var fixedNow = time.Date(2026, 10, 18, 21, 30, 0, 0, time.UTC)

func testEngine(width int) Engine {
	return Engine{
		Width:    width,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
}

func sampleOrder(t *testing.T, customer string) model.Order {
	t.Helper()
	sprite, err := model.NewLineItem(1, "Sprite", decimal.RequireFromString("2.50"))
	if err != nil {
		t.Fatal(err)
	}
	burger, err := model.NewLineItem(2, "Hamburguesa", decimal.RequireFromString("8.00"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{sprite, burger}, "5", customer, "")
	if err != nil {
		t.Fatal(err)
	}
	return order
}

func TestRenderScenarioTotal(t *testing.T) {
	ticket, err := testEngine(model.Width80mm).Render(sampleOrder(t, ""))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var found bool
	for _, line := range ticket.Lines {
		if strings.TrimSpace(line) == "TOTAL: 18.50 EUR" {
			found = true
		}
	}
	if !found {
		t.Errorf("no total line in ticket:\n%s", ticket.Text())
	}
}

func TestRenderLineWidths(t *testing.T) {
	for _, width := range []int{model.Width58mmNarrow, model.Width58mm, model.Width80mm, model.Width80mmWide} {
		ticket, err := testEngine(width).Render(sampleOrder(t, "Lucia"))
		if err != nil {
			t.Fatalf("Render(width=%d) error = %v", width, err)
		}
		for i, line := range ticket.Lines {
			if got := columns.StringWidth(line); got != width {
				t.Errorf("width %d: line %d %q has width %d", width, i, line, got)
			}
		}
	}
}

func TestRenderItemLines(t *testing.T) {
	ticket, err := testEngine(model.Width80mm).Render(sampleOrder(t, ""))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	start, end := -1, -1
	for i, line := range ticket.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "PEDIDO:" {
			start = i
		}
		if start >= 0 && i > start && strings.Trim(trimmed, "-") == "" && trimmed != "" {
			end = i
			break
		}
	}
	if start < 0 || end < 0 {
		t.Fatalf("could not locate item block in:\n%s", ticket.Text())
	}
	if got := end - start - 1; got != 4 {
		t.Errorf("item lines = %d, want 4", got)
	}

	want := []string{
		"1x Sprite",
		"   2.50 EUR x 1 = 2.50 EUR",
		"2x Hamburguesa",
		"   8.00 EUR x 2 = 16.00 EUR",
	}
	for i, w := range want {
		if got := strings.TrimRight(ticket.Lines[start+1+i], " "); got != w {
			t.Errorf("item line %d = %q, want %q", i, got, w)
		}
	}
}

func TestRenderHeaderAndFooter(t *testing.T) {
	ticket, err := testEngine(model.Width80mm).Render(sampleOrder(t, "Lucia"))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	lines := ticket.Lines

	if lines[1] != strings.Repeat("=", 48) {
		t.Errorf("separator = %q", lines[1])
	}
	checks := map[int]string{
		2: "MESA: 5",
		3: "CLIENTE: Lucia",
		4: "FECHA: 18/10/2026 21:30",
	}
	for i, want := range checks {
		if got := strings.TrimRight(lines[i], " "); got != want {
			t.Errorf("line %d = %q, want %q", i, got, want)
		}
	}

	tail := lines[len(lines)-3:]
	for i, line := range tail {
		if strings.TrimSpace(line) != "" {
			t.Errorf("trailing line %d = %q, want blank", i, line)
		}
	}
	if got := strings.TrimSpace(lines[len(lines)-4]); got != thankYou {
		t.Errorf("thank-you line = %q", got)
	}
}

func TestRenderWithoutCustomer(t *testing.T) {
	ticket, err := testEngine(model.Width80mm).Render(sampleOrder(t, ""))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, line := range ticket.Lines {
		if strings.HasPrefix(line, "CLIENTE:") {
			t.Errorf("unexpected customer line %q", line)
		}
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		text    string
		width   int
		wantPad int
	}{
		{"PEDIDO:", 48, 20},
		{"PEDIDO:", 24, 8},
		{"ABC", 6, 1},
		{"ABCDEFGH", 4, 0},
	}
	for _, tt := range tests {
		got := center(tt.text, tt.width)
		pad := len(got) - len(strings.TrimLeft(got, " "))
		if pad != tt.wantPad {
			t.Errorf("center(%q, %d) pad = %d, want %d", tt.text, tt.width, pad, tt.wantPad)
		}
		if tt.width >= len(tt.text) && len(got) > tt.width {
			t.Errorf("center(%q, %d) = %q exceeds width", tt.text, tt.width, got)
		}
	}
}

func TestRenderTruncatesLongNames(t *testing.T) {
	item, err := model.NewLineItem(1, strings.Repeat("Pizza ", 20), decimal.RequireFromString("9.95"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{item}, "1", "", "")
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := testEngine(model.Width58mmNarrow).Render(order)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, line := range ticket.Lines {
		if columns.StringWidth(line) != model.Width58mmNarrow {
			t.Errorf("line %q not fitted", line)
		}
	}
}

func TestRenderStripsControlCharacters(t *testing.T) {
	item, err := model.NewLineItem(1, "Tarta\x1b@\nqueso", decimal.RequireFromString("4.00"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{item}, "1", "", "")
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := testEngine(model.Width80mm).Render(order)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.ContainsAny(ticket.Text(), "\x1b\r") {
		t.Error("control characters leaked into the ticket")
	}
}

func TestRenderHalfUpRounding(t *testing.T) {
	item, err := model.NewLineItem(3, "Tapa", decimal.RequireFromString("0.335"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{item}, "1", "", "")
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := testEngine(model.Width80mm).Render(order)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(ticket.Text(), "0.34 EUR x 3 = 1.01 EUR") {
		t.Errorf("unexpected rounding:\n%s", ticket.Text())
	}
	if !item.TotalPrice.Equal(decimal.RequireFromString("1.005")) {
		t.Errorf("stored total changed to %s", item.TotalPrice)
	}
}

func TestRenderDeterministic(t *testing.T) {
	e := testEngine(model.Width80mm)
	order := sampleOrder(t, "Lucia")
	a, err := e.Render(order)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Render(order)
	if err != nil {
		t.Fatal(err)
	}
	if a.Text() != b.Text() {
		t.Error("Render() is not deterministic for a fixed clock")
	}
}

func TestRenderRejectsBadWidth(t *testing.T) {
	if _, err := testEngine(4).Render(sampleOrder(t, "")); err == nil {
		t.Error("Render() accepted width 4")
	}
}

func TestRenderComposesDecomposedText(t *testing.T) {
	// "Café" typed with a combining acute accent, as macOS and iOS send it.
	name := strings.Repeat("Cafe\u0301 ", 6)
	item, err := model.NewLineItem(1, name, decimal.RequireFromString("1.80"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{item}, "1", "Jose\u0301", "")
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := testEngine(model.Width58mmNarrow).Render(order)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	text := ticket.Text()
	if strings.ContainsRune(text, '\u0301') {
		t.Error("combining mark left in the ticket")
	}
	if !strings.Contains(text, "1x Café Café") || !strings.Contains(text, "CLIENTE: José") {
		t.Errorf("text not composed:\n%s", text)
	}
	for i, line := range ticket.Lines {
		if n := utf8.RuneCountInString(line); n != model.Width58mmNarrow {
			t.Errorf("line %d %q has %d runes, want %d", i, line, n, model.Width58mmNarrow)
		}
	}
}

func TestRenderIgnoresHostLocale(t *testing.T) {
	saved := runewidth.DefaultCondition
	runewidth.DefaultCondition = &runewidth.Condition{EastAsianWidth: true}
	defer func() { runewidth.DefaultCondition = saved }()

	item, err := model.NewLineItem(1, "Crème brûlée €", decimal.RequireFromString("5.50"))
	if err != nil {
		t.Fatal(err)
	}
	order, err := model.NewOrder([]model.LineItem{item}, "1", "", "Cañón")
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := testEngine(model.Width80mm).Render(order)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for i, line := range ticket.Lines {
		if n := utf8.RuneCountInString(line); n != model.Width80mm {
			t.Errorf("line %d %q has %d runes, want %d", i, line, n, model.Width80mm)
		}
	}
	if got := ticket.Lines[0]; !strings.HasPrefix(got, strings.Repeat(" ", (model.Width80mm-5)/2)+"Cañón") {
		t.Errorf("header = %q, want centered as 5 columns", got)
	}
}
