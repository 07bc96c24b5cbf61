// Package transform reshapes resolved connection values before injection.
//
// A transform expression is a '|' separated pipeline of steps; each step is a
// name with an optional ':' argument, e.g. "count", "multiply:100",
// "filter:done|count" or "sum|round:1|format:{value} pts". All steps are pure.
package transform

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"hive/internal/domain"
	"hive/internal/infra/valueutil"
)

// Names of the supported steps.
const (
	Identity  = "identity"
	ToString  = "toString"
	ToNumber  = "toNumber"
	ToBoolean = "toBoolean"
	ToArray   = "toArray"
	Count     = "count"
	Sum       = "sum"
	Average   = "average"
	Min       = "min"
	Max       = "max"
	First     = "first"
	Last      = "last"
	Keys      = "keys"
	Values    = "values"
	Join      = "join"
	Reverse   = "reverse"
	Filter    = "filter"
	Pluck     = "pluck"
	Multiply  = "multiply"
	Divide    = "divide"
	Add       = "add"
	Subtract  = "subtract"
	Round     = "round"
	Percent   = "percent"
	Format    = "format"
)

// ErrNonFinite reports a NaN or infinite number in an operand or a result.
// Such values cannot be encoded as JSON.
var ErrNonFinite = errors.New("non-finite number")

// maxRoundDecimals is the most decimals float64 can represent meaningfully.
const maxRoundDecimals = 15

type stepFunc func(value any, arg string) (any, error)

var steps = map[string]stepFunc{
	Identity:  func(v any, _ string) (any, error) { return v, nil },
	ToString:  func(v any, _ string) (any, error) { return valueutil.Stringify(v), nil },
	ToNumber:  toNumber,
	ToBoolean: func(v any, _ string) (any, error) { return valueutil.Truthy(v), nil },
	ToArray:   toArray,
	Count:     count,
	Sum:       sum,
	Average:   average,
	Min:       extremum(func(a, b float64) bool { return a < b }),
	Max:       extremum(func(a, b float64) bool { return a > b }),
	First:     first,
	Last:      last,
	Keys:      keys,
	Values:    toArray,
	Join:      join,
	Reverse:   reverse,
	Filter:    filter,
	Pluck:     pluck,
	Multiply:  arithmetic(func(a, b float64) (float64, error) { return a * b, nil }),
	Divide: arithmetic(func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	}),
	Add:      arithmetic(func(a, b float64) (float64, error) { return a + b, nil }),
	Subtract: arithmetic(func(a, b float64) (float64, error) { return a - b, nil }),
	Round:    round,
	Percent:  percent,
	Format:   format,
}

// Step is one parsed pipeline stage.
type Step struct {
	Name string
	Arg  string
}

// Parse splits a transform expression into steps and rejects unknown names.
// An empty expression parses to no steps (identity).
func Parse(expr string) ([]Step, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	parts := strings.Split(expr, "|")
	out := make([]Step, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if _, ok := steps[name]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTransform, name)
		}
		out = append(out, Step{Name: name, Arg: arg})
	}
	return out, nil
}

// Validate reports whether expr is a well-formed transform expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// Apply runs the transform expression against value.
func Apply(expr string, value any) (any, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	current := value
	for _, step := range parsed {
		current, err = steps[step.Name](current, step.Arg)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", step.Name, err)
		}
	}
	if path, ok := nonFinite(current, ""); !ok {
		if path == "" {
			return nil, fmt.Errorf("transform result: %w", ErrNonFinite)
		}
		return nil, fmt.Errorf("transform result at %s: %w", path, ErrNonFinite)
	}
	return current, nil
}

// nonFinite walks value and reports the path of the first NaN or infinite
// number; ok is false when one is found.
func nonFinite(value any, path string) (string, bool) {
	switch v := value.(type) {
	case float64:
		return path, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return path, !math.IsNaN(f) && !math.IsInf(f, 0)
	case []any:
		for i, item := range v {
			if at, ok := nonFinite(item, path+"["+strconv.Itoa(i)+"]"); !ok {
				return at, false
			}
		}
	case map[string]any:
		for key, item := range v {
			child := key
			if path != "" {
				child = path + "." + key
			}
			if at, ok := nonFinite(item, child); !ok {
				return at, false
			}
		}
	}
	return "", true
}

// parseOperand reads a finite numeric step argument.
func parseOperand(arg string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid operand %q", arg)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("operand %q: %w", arg, ErrNonFinite)
	}
	return f, nil
}

// Names lists the supported step names in sorted order.
func Names() []string {
	out := make([]string, 0, len(steps))
	for name := range steps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func toNumber(value any, _ string) (any, error) {
	if b, ok := value.(bool); ok {
		if b {
			return 1.0, nil
		}
		return 0.0, nil
	}
	f, ok := valueutil.AsFloat(value, true)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to number", value)
	}
	return f, nil
}

func toArray(value any, _ string) (any, error) {
	if value == nil {
		return []any{}, nil
	}
	if items, ok := valueutil.Items(value); ok {
		out := make([]any, len(items))
		copy(out, items)
		return out, nil
	}
	return []any{value}, nil
}

func count(value any, _ string) (any, error) {
	switch v := value.(type) {
	case nil:
		return 0.0, nil
	case string:
		return float64(len([]rune(v))), nil
	}
	items, ok := valueutil.Items(value)
	if !ok {
		return 1.0, nil
	}
	return float64(len(items)), nil
}

func numbers(value any) ([]float64, error) {
	if f, ok := valueutil.AsFloat(value, false); ok {
		return []float64{f}, nil
	}
	items, ok := valueutil.Items(value)
	if !ok {
		return nil, fmt.Errorf("expected a collection, got %T", value)
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := valueutil.AsFloat(item, true); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func sum(value any, _ string) (any, error) {
	nums, err := numbers(value)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func average(value any, _ string) (any, error) {
	nums, err := numbers(value)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums)), nil
}

func extremum(better func(a, b float64) bool) stepFunc {
	return func(value any, _ string) (any, error) {
		nums, err := numbers(value)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, fmt.Errorf("empty collection")
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if better(n, best) {
				best = n
			}
		}
		return best, nil
	}
}

func first(value any, _ string) (any, error) {
	items, ok := valueutil.Items(value)
	if !ok {
		return value, nil
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func last(value any, _ string) (any, error) {
	items, ok := valueutil.Items(value)
	if !ok {
		return value, nil
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[len(items)-1], nil
}

func keys(value any, _ string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", value)
	}
	sorted := valueutil.SortedKeys(m)
	out := make([]any, len(sorted))
	for i, k := range sorted {
		out[i] = k
	}
	return out, nil
}

func join(value any, arg string) (any, error) {
	sep := arg
	if sep == "" {
		sep = ", "
	}
	items, ok := valueutil.Items(value)
	if !ok {
		return valueutil.Stringify(value), nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = valueutil.Stringify(item)
	}
	return strings.Join(parts, sep), nil
}

func reverse(value any, _ string) (any, error) {
	items, ok := valueutil.Items(value)
	if !ok {
		return nil, fmt.Errorf("expected a collection, got %T", value)
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out, nil
}

// filter keeps elements whose field (arg, optionally "field=value") is truthy or equal.
func filter(value any, arg string) (any, error) {
	items, ok := valueutil.Items(value)
	if !ok {
		return nil, fmt.Errorf("expected a collection, got %T", value)
	}
	field, want, hasWant := strings.Cut(arg, "=")
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("filter requires a field argument")
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		got, present := m[field]
		if !present {
			continue
		}
		if hasWant {
			if valueutil.Stringify(got) == strings.TrimSpace(want) {
				out = append(out, item)
			}
			continue
		}
		if valueutil.Truthy(got) {
			out = append(out, item)
		}
	}
	return out, nil
}

func pluck(value any, arg string) (any, error) {
	field := strings.TrimSpace(arg)
	if field == "" {
		return nil, fmt.Errorf("pluck requires a field argument")
	}
	items, ok := valueutil.Items(value)
	if !ok {
		return nil, fmt.Errorf("expected a collection, got %T", value)
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if v, present := m[field]; present {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func arithmetic(op func(a, b float64) (float64, error)) stepFunc {
	return func(value any, arg string) (any, error) {
		operand, err := parseOperand(arg)
		if err != nil {
			return nil, err
		}
		f, ok := valueutil.AsFloat(value, true)
		if !ok {
			return nil, fmt.Errorf("cannot apply arithmetic to %T", value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("input: %w", ErrNonFinite)
		}
		result, err := op(f, operand)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return nil, fmt.Errorf("result out of range: %w", ErrNonFinite)
		}
		return result, nil
	}
}

func round(value any, arg string) (any, error) {
	decimals := 0
	if strings.TrimSpace(arg) != "" {
		d, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || d < 0 || d > maxRoundDecimals {
			return nil, fmt.Errorf("invalid decimals %q", arg)
		}
		decimals = d
	}
	f, ok := valueutil.AsFloat(value, true)
	if !ok {
		return nil, fmt.Errorf("cannot round %T", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("input: %w", ErrNonFinite)
	}
	scale := math.Pow(10, float64(decimals))
	rounded := math.Round(f*scale) / scale
	if math.IsNaN(rounded) || math.IsInf(rounded, 0) {
		// f*scale overflowed; f already has fewer significant decimals.
		return f, nil
	}
	return rounded, nil
}

// percent expresses value as a percentage of arg.
func percent(value any, arg string) (any, error) {
	total, err := parseOperand(arg)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return 0.0, nil
	}
	f, ok := valueutil.AsFloat(value, true)
	if !ok {
		return nil, fmt.Errorf("cannot compute percent of %T", value)
	}
	result := f / total * 100
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, fmt.Errorf("percent of %v: %w", f, ErrNonFinite)
	}
	return result, nil
}

// format substitutes {value} in arg; without a placeholder the value is appended.
func format(value any, arg string) (any, error) {
	rendered := valueutil.Stringify(value)
	if arg == "" {
		return rendered, nil
	}
	if strings.Contains(arg, "{value}") {
		return strings.ReplaceAll(arg, "{value}", rendered), nil
	}
	return arg + rendered, nil
}
