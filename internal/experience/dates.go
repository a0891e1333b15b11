package experience

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%s %d", ym.Month.String()[:3], ym.Year)
}

// monthsThrough counts months from ym to end, both inclusive.
func (ym YearMonth) monthsThrough(end YearMonth) int {
	return (end.Year-ym.Year)*12 + int(end.Month-ym.Month) + 1
}

// DateRange is either Closed or OpenEnded.
type DateRange interface {
	Start() YearMonth
	// End resolves the last month of the range, using ref for open ranges.
	End(ref YearMonth) YearMonth
	isDateRange()
}

// Closed is a range with an explicit end month.
type Closed struct {
	From YearMonth
	To   YearMonth
}

func (c Closed) Start() YearMonth        { return c.From }
func (c Closed) End(YearMonth) YearMonth { return c.To }
func (Closed) isDateRange()              {}
func (c Closed) String() string          { return c.From.String() + " - " + c.To.String() }

// OpenEnded is a range that runs until "Present", "Current" or "Now".
type OpenEnded struct {
	From YearMonth
}

func (o OpenEnded) Start() YearMonth            { return o.From }
func (o OpenEnded) End(ref YearMonth) YearMonth { return ref }
func (OpenEnded) isDateRange()                  {}
func (o OpenEnded) String() string              { return o.From.String() + " - Present" }

// Months returns the inclusive month count of r, resolving open ranges at ref.
func Months(r DateRange, ref YearMonth) int {
	return r.Start().monthsThrough(r.End(ref))
}

type tokenKind int

const (
	tokMonth tokenKind = iota
	tokNumber
	tokDot
	tokSlash
	tokDash
	tokTo
	tokOpen
	tokWord
	tokOther
)

type token struct {
	kind  tokenKind
	text  string
	value int
	// start and end are byte offsets into the tokenized input.
	start, end int
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var openMarkers = map[string]struct{}{"present": {}, "current": {}, "now": {}}

func isDash(r rune) bool {
	return r == '-' || r == '–' || r == '—'
}

func tokenize(s string) []token {
	var tokens []token
	runes := make([]rune, 0, len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		runes = append(runes, r)
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))
	offset := func(i int) int { return offsets[i] }

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || runes[j] == '\'') {
				j++
			}
			word := strings.ToLower(string(runes[i:j]))
			tok := token{kind: tokWord, text: word, start: offset(i)}
			if m, ok := monthNames[word]; ok {
				tok.kind = tokMonth
				tok.value = int(m)
				// "Jan." abbreviations keep their dot.
				if j < len(runes) && runes[j] == '.' {
					j++
				}
			} else if word == "to" {
				tok.kind = tokTo
			} else if _, ok := openMarkers[word]; ok {
				tok.kind = tokOpen
			}
			tok.end = offset(j)
			tokens = append(tokens, tok)
			i = j

		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			text := string(runes[i:j])
			value, err := strconv.Atoi(text)
			if err != nil {
				value = -1
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, value: value, start: offset(i), end: offset(j)})
			i = j

		case isDash(r):
			j := i
			for j < len(runes) && (isDash(runes[j]) || unicode.IsSpace(runes[j]) && j+1 < len(runes) && isDash(runes[j+1])) {
				j++
			}
			tokens = append(tokens, token{kind: tokDash, text: "-", start: offset(i), end: offset(j)})
			i = j

		case r == '.':
			tokens = append(tokens, token{kind: tokDot, text: ".", start: offset(i), end: offset(i + 1)})
			i++

		case r == '/':
			tokens = append(tokens, token{kind: tokSlash, text: "/", start: offset(i), end: offset(i + 1)})
			i++

		default:
			tokens = append(tokens, token{kind: tokOther, text: string(r), start: offset(i), end: offset(i + 1)})
			i++
		}
	}
	return tokens
}

// matcher accepts a single token.
type matcher func(token) bool

func kind(k tokenKind) matcher {
	return func(t token) bool { return t.kind == k }
}

func year(t token) bool {
	return t.kind == tokNumber && len(t.text) == 4
}

func monthNumber(t token) bool {
	return t.kind == tokNumber && len(t.text) <= 2
}

var (
	month = kind(tokMonth)
	dash  = kind(tokDash)
	to    = kind(tokTo)
	open  = kind(tokOpen)
	dot   = kind(tokDot)
	slash = kind(tokSlash)
)

// grammar is a fixed token sequence and the range it denotes.
type grammar struct {
	name  string
	seq   []matcher
	build func(t []token) (DateRange, error)
}

func named(t token, y token) YearMonth {
	return YearMonth{Year: y.value, Month: time.Month(t.value)}
}

func numeric(m token, y token) (YearMonth, error) {
	if m.value < 1 || m.value > 12 {
		return YearMonth{}, fmt.Errorf("month %d out of range", m.value)
	}
	return YearMonth{Year: y.value, Month: time.Month(m.value)}, nil
}

func closedNumeric(sm, sy, em, ey token) (DateRange, error) {
	from, err := numeric(sm, sy)
	if err != nil {
		return nil, err
	}
	end, err := numeric(em, ey)
	if err != nil {
		return nil, err
	}
	return Closed{From: from, To: end}, nil
}

// grammars are tried in order; the first one matching anywhere in the input wins.
var grammars = []grammar{
	{
		name: "month year - month year",
		seq:  []matcher{month, year, dash, month, year},
		build: func(t []token) (DateRange, error) {
			return Closed{From: named(t[0], t[1]), To: named(t[3], t[4])}, nil
		},
	},
	{
		name: "month year - month",
		seq:  []matcher{month, year, dash, month},
		build: func(t []token) (DateRange, error) {
			return Closed{From: named(t[0], t[1]), To: named(t[3], t[1])}, nil
		},
	},
	{
		name: "month year - present",
		seq:  []matcher{month, year, dash, open},
		build: func(t []token) (DateRange, error) {
			return OpenEnded{From: named(t[0], t[1])}, nil
		},
	},
	{
		name: "year - year",
		seq:  []matcher{year, dash, year},
		build: func(t []token) (DateRange, error) {
			return Closed{
				From: YearMonth{Year: t[0].value, Month: time.January},
				To:   YearMonth{Year: t[2].value, Month: time.December},
			}, nil
		},
	},
	{
		name: "month year to month year",
		seq:  []matcher{month, year, to, month, year},
		build: func(t []token) (DateRange, error) {
			return Closed{From: named(t[0], t[1]), To: named(t[3], t[4])}, nil
		},
	},
	{
		name: "month year to present",
		seq:  []matcher{month, year, to, open},
		build: func(t []token) (DateRange, error) {
			return OpenEnded{From: named(t[0], t[1])}, nil
		},
	},
	{
		name: "yyyy.mm - yyyy.mm",
		seq:  []matcher{year, dot, monthNumber, dash, year, dot, monthNumber},
		build: func(t []token) (DateRange, error) {
			return closedNumeric(t[2], t[0], t[6], t[4])
		},
	},
	{
		name: "mm/yyyy - mm/yyyy",
		seq:  []matcher{monthNumber, slash, year, dash, monthNumber, slash, year},
		build: func(t []token) (DateRange, error) {
			return closedNumeric(t[0], t[2], t[4], t[6])
		},
	},
}

func (g grammar) matchAt(tokens []token, i int) bool {
	if i+len(g.seq) > len(tokens) {
		return false
	}
	for k, m := range g.seq {
		if !m(tokens[i+k]) {
			return false
		}
	}
	return true
}

// Match is a located date range inside a larger string.
type Match struct {
	Range DateRange
	// Grammar names the rule that matched.
	Grammar string
	// Text is the matched slice of the input.
	Text string
	// Start and End are byte offsets of Text in the input.
	Start, End int
}

// FindRange locates the first supported date range in s. Errors are *ParsingError,
// wrapping ErrNoDateRange when nothing matched.
func FindRange(s string) (Match, error) {
	tokens := tokenize(s)
	for _, g := range grammars {
		for i := range tokens {
			if !g.matchAt(tokens, i) {
				continue
			}
			span := tokens[i : i+len(g.seq)]
			m := Match{Grammar: g.name, Start: span[0].start, End: span[len(span)-1].end}
			m.Text = s[m.Start:m.End]

			r, err := g.build(span)
			if err != nil {
				return m, &ParsingError{Input: s, Err: err}
			}
			m.Range = r
			return m, nil
		}
	}
	return Match{}, &ParsingError{Input: s, Err: ErrNoDateRange}
}

// ParseRange parses the first supported date range in s.
func ParseRange(s string) (DateRange, error) {
	m, err := FindRange(s)
	if err != nil {
		return nil, err
	}
	return m.Range, nil
}
