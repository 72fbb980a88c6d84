package flight

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

var (
	clauseRegex = regexp.MustCompile(`^([A-Za-z_-]+)\s*(<=|>=|==|!=|<|>)\s*(\S.*)$`)
	andRegex    = regexp.MustCompile(`(?i)\s+and\s+`)
)

var fields = map[string]func(telemetry.Sample) float64{
	"latitude":  func(s telemetry.Sample) float64 { return s.Latitude },
	"longitude": func(s telemetry.Sample) float64 { return s.Longitude },
	"altitude":  func(s telemetry.Sample) float64 { return s.Altitude },
	"speed":     func(s telemetry.Sample) float64 { return s.Speed },
	"heading":   func(s telemetry.Sample) float64 { return s.Heading },
	"roll":      func(s telemetry.Sample) float64 { return s.Roll },
	"pitch":     func(s telemetry.Sample) float64 { return s.Pitch },
	"gforce":    func(s telemetry.Sample) float64 { return s.GForce },
	"g-force":   func(s telemetry.Sample) float64 { return s.GForce },
}

// ParseCondition compiles a filter such as "speed > 50 and altitude < 10000"
// into a predicate. Clauses compare a sample field with a constant and are
// joined with "and". The time field takes an RFC 3339 timestamp. A missing
// value never matches.
func ParseCondition(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty condition")
	}

	var preds []Predicate
	for _, clause := range andRegex.Split(expr, -1) {
		p, err := parseClause(strings.TrimSpace(clause))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", clause, err)
		}
		preds = append(preds, p)
	}

	return func(s telemetry.Sample) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}, nil
}

func parseClause(clause string) (Predicate, error) {
	m := clauseRegex.FindStringSubmatch(clause)
	if m == nil {
		return nil, fmt.Errorf("expected <field> <operator> <value>")
	}
	field, op, value := strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])

	if field == "time" {
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, fmt.Errorf("invalid time: %w", err)
		}
		ref := t.UnixNano()
		return func(s telemetry.Sample) bool {
			return holds(op, cmp.Compare(s.Time, ref))
		}, nil
	}

	get, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", m[1])
	}
	ref, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", value)
	}
	return func(s telemetry.Sample) bool {
		return compare(op, get(s), ref)
	}, nil
}

// compare is false for NaN operands, including "!=".
func compare(op string, a, b float64) bool {
	if a != a || b != b {
		return false
	}
	return holds(op, cmp.Compare(a, b))
}

// holds reports whether op is satisfied by the ordering c of its operands.
func holds(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "==":
		return c == 0
	default:
		return c != 0
	}
}
