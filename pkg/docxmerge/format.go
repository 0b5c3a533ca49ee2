package docxmerge

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// isoDateFormats are tried in order before falling back to permissive
// parsing. Round-trip ISO forms come first so that unambiguous timestamps
// never depend on locale heuristics.
var isoDateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006/01/02",
	"2006.01.02",
}

// parseDateTime attempts to parse a string as a timestamp
func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range isoDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// numericOperand coerces a value to float64 for numeric formatting
func numericOperand(v Value) (float64, bool) {
	switch v.Kind() {
	case IntValue, FloatValue:
		return v.AsFloat(), true
	case StringValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// dateTimeOperand coerces a value to a timestamp. Integers are treated as
// Unix timestamps, in milliseconds when they are too large for seconds.
func dateTimeOperand(v Value) (time.Time, bool) {
	switch v.Kind() {
	case StringValue:
		return parseDateTime(v.AsString())
	case IntValue:
		n := v.AsInt()
		if n > 1e10 {
			return time.Unix(n/1000, (n%1000)*1e6).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	case FloatValue:
		return time.Unix(int64(v.AsFloat()), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func opFormat(operand Value, args []string, _ *TemplateContext) (Value, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Null(), NewOperatorError("format", "missing format kind")
	}
	kind := strings.ToLower(strings.TrimSpace(args[0]))
	// Patterns may themselves contain colons (HH:mm:ss), so the remaining
	// arguments are rejoined.
	pattern := strings.Join(args[1:], ":")

	switch kind {
	case "number", "numeric":
		f, ok := numericOperand(operand)
		if !ok || pattern == "" {
			return String(operand.Text()), nil
		}
		return String(formatNumberPattern(f, pattern)), nil

	case "percent":
		f, ok := numericOperand(operand)
		if !ok {
			return String(operand.Text()), nil
		}
		if pattern == "" {
			pattern = "0"
		}
		return String(formatNumberPattern(f*100, pattern) + "%"), nil

	case "permille":
		f, ok := numericOperand(operand)
		if !ok {
			return String(operand.Text()), nil
		}
		if pattern == "" {
			pattern = "0"
		}
		return String(formatNumberPattern(f*1000, pattern) + "‰"), nil

	case "date", "datetime", "time":
		t, ok := dateTimeOperand(operand)
		if !ok {
			return String(operand.Text()), nil
		}
		if pattern == "" {
			return String(t.Format(time.RFC3339)), nil
		}
		return String(t.Format(translateDatePattern(pattern))), nil

	default:
		return Null(), NewOperatorError("format", "unknown format kind: "+kind)
	}
}

// formatNumberPattern renders a number with an Excel-style digit pattern such
// as "#,##0.00". A '%' in the pattern multiplies the value by 100 and a '‰'
// by 1000; both are kept in the output verbatim. Rounding is half away from
// zero.
func formatNumberPattern(x float64, pattern string) string {
	runes := []rune(pattern)

	first := -1
	for i, r := range runes {
		if r == '#' || r == '0' {
			first = i
			break
		}
	}
	if first < 0 {
		return pattern
	}

	end := first
	for end < len(runes) {
		r := runes[end]
		if r == '#' || r == '0' || r == ',' || r == '.' {
			end++
			continue
		}
		break
	}

	prefix := string(runes[:first])
	core := string(runes[first:end])
	suffix := string(runes[end:])

	if strings.ContainsRune(prefix, '%') || strings.ContainsRune(suffix, '%') {
		x *= 100
	}
	if strings.ContainsRune(prefix, '‰') || strings.ContainsRune(suffix, '‰') {
		x *= 1000
	}

	intSpec, fracSpec := core, ""
	if dot := strings.IndexByte(core, '.'); dot >= 0 {
		intSpec, fracSpec = core[:dot], core[dot+1:]
	}

	minInt := strings.Count(intSpec, "0")
	if minInt == 0 {
		minInt = 1
	}
	grouping := strings.Contains(intSpec, ",")
	minFrac := strings.Count(fracSpec, "0")
	maxFrac := strings.Count(fracSpec, "0") + strings.Count(fracSpec, "#")

	negative := x < 0
	abs := math.Abs(x)

	scale := math.Pow(10, float64(maxFrac))
	scaled := math.Floor(abs*scale + 0.5)
	digits := strconv.FormatFloat(scaled, 'f', 0, 64)

	for len(digits) <= maxFrac {
		digits = "0" + digits
	}
	intDigits := digits[:len(digits)-maxFrac]
	fracDigits := digits[len(digits)-maxFrac:]

	for len(fracDigits) > minFrac && strings.HasSuffix(fracDigits, "0") {
		fracDigits = fracDigits[:len(fracDigits)-1]
	}

	for len(intDigits) < minInt {
		intDigits = "0" + intDigits
	}

	if grouping {
		intDigits = groupThousands(intDigits)
	}

	var sb strings.Builder
	if negative && scaled > 0 {
		sb.WriteByte('-')
	}
	sb.WriteString(prefix)
	sb.WriteString(intDigits)
	if fracDigits != "" {
		sb.WriteByte('.')
		sb.WriteString(fracDigits)
	}
	sb.WriteString(suffix)
	return sb.String()
}

// groupThousands inserts comma separators every three digits from the right
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// translateDatePattern converts a date pattern using yyyy/MM/dd style tokens
// into a Go time layout. Unrecognised runs, including non-ASCII literals such
// as 年月日, pass through verbatim.
func translateDatePattern(pattern string) string {
	var sb strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		c := runes[i]
		j := i
		for j < len(runes) && runes[j] == c {
			j++
		}
		n := j - i
		switch c {
		case 'y':
			if n == 2 {
				sb.WriteString("06")
			} else {
				sb.WriteString("2006")
			}
		case 'M':
			switch {
			case n >= 4:
				sb.WriteString("January")
			case n == 3:
				sb.WriteString("Jan")
			case n == 2:
				sb.WriteString("01")
			default:
				sb.WriteString("1")
			}
		case 'd':
			switch {
			case n >= 4:
				sb.WriteString("Monday")
			case n == 3:
				sb.WriteString("Mon")
			case n == 2:
				sb.WriteString("02")
			default:
				sb.WriteString("2")
			}
		case 'H':
			sb.WriteString("15")
		case 'h':
			if n >= 2 {
				sb.WriteString("03")
			} else {
				sb.WriteString("3")
			}
		case 'm':
			if n >= 2 {
				sb.WriteString("04")
			} else {
				sb.WriteString("4")
			}
		case 's':
			if n >= 2 {
				sb.WriteString("05")
			} else {
				sb.WriteString("5")
			}
		case 't':
			sb.WriteString("PM")
		case 'f':
			sb.WriteString(strings.Repeat("0", n))
		default:
			sb.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return sb.String()
}
