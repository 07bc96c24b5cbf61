// Package conditions evaluates automation conditions against a state snapshot.
package conditions

import (
	"fmt"
	"reflect"
	"strings"

	"hive/internal/domain"
	"hive/internal/infra/pathutil"
	"hive/internal/infra/valueutil"
)

const (
	triggerPrefix = "trigger"
	statePrefix   = "state"
)

// Context is the data conditions are evaluated against.
type Context struct {
	// State is the path-addressable view of the owning tool's shared state.
	State map[string]any
	// Trigger is the triggering event's metadata, addressed as "trigger.<key>".
	Trigger map[string]any
}

// Result is the aggregate outcome of a condition list.
type Result struct {
	AllMet  bool   `json:"allMet"`
	Results []bool `json:"results"`
}

// Detail is the per-condition outcome reported by previews.
type Detail struct {
	Field    string          `json:"field"`
	Operator domain.Operator `json:"operator"`
	Expected any             `json:"expected"`
	Actual   any             `json:"actual"`
	Passed   bool            `json:"passed"`
}

// EvaluateAll evaluates every condition in order. An empty list is met.
func EvaluateAll(conditions []domain.Condition, ctx Context) Result {
	details := EvaluateDetailed(conditions, ctx)
	result := Result{AllMet: true, Results: make([]bool, len(details))}
	for i, d := range details {
		result.Results[i] = d.Passed
		if !d.Passed {
			result.AllMet = false
		}
	}
	return result
}

// EvaluateDetailed evaluates every condition and reports the resolved value of each.
func EvaluateDetailed(conditions []domain.Condition, ctx Context) []Detail {
	out := make([]Detail, len(conditions))
	for i, cond := range conditions {
		actual, found := Resolve(cond.Field, ctx)
		out[i] = Detail{
			Field:    cond.Field,
			Operator: cond.Operator,
			Expected: cond.Value,
			Actual:   actual,
			Passed:   Evaluate(cond, actual, found),
		}
	}
	return out
}

// Resolve looks up field in the context. Fields prefixed with "trigger."
// read trigger metadata; a leading "state." is optional for state fields.
func Resolve(field string, ctx Context) (any, bool) {
	segments := pathutil.Split(field)
	if len(segments) == 0 {
		return nil, false
	}
	switch segments[0] {
	case triggerPrefix:
		return pathutil.LookupSegments(ctx.Trigger, segments[1:])
	case statePrefix:
		return pathutil.LookupSegments(ctx.State, segments[1:])
	}
	return pathutil.LookupSegments(ctx.State, segments)
}

// Evaluate applies one condition to a resolved value. Absent values fail
// every operator except not_exists and is_empty. Evaluate never panics.
func Evaluate(cond domain.Condition, actual any, found bool) (passed bool) {
	defer func() {
		if recover() != nil {
			passed = false
		}
	}()

	switch cond.Operator {
	case domain.OperatorExists:
		return found && actual != nil
	case domain.OperatorNotExists:
		return !found || actual == nil
	case domain.OperatorIsEmpty:
		return !found || valueutil.IsEmpty(actual)
	case domain.OperatorIsNotEmpty:
		return found && !valueutil.IsEmpty(actual)
	}
	if !found {
		return false
	}

	switch cond.Operator {
	case domain.OperatorEquals:
		return looseEqual(actual, cond.Value)
	case domain.OperatorNotEquals:
		return !looseEqual(actual, cond.Value)
	case domain.OperatorGreaterThan:
		return compare(actual, cond.Value, func(c int) bool { return c > 0 })
	case domain.OperatorGreaterThanOrEqual:
		return compare(actual, cond.Value, func(c int) bool { return c >= 0 })
	case domain.OperatorLessThan:
		return compare(actual, cond.Value, func(c int) bool { return c < 0 })
	case domain.OperatorLessThanOrEqual:
		return compare(actual, cond.Value, func(c int) bool { return c <= 0 })
	case domain.OperatorContains:
		return contains(actual, cond.Value)
	case domain.OperatorNotContains:
		return !contains(actual, cond.Value)
	case domain.OperatorIn:
		return contains(cond.Value, actual)
	case domain.OperatorNotIn:
		return !contains(cond.Value, actual)
	case domain.OperatorStartsWith:
		s, ok := actual.(string)
		return ok && strings.HasPrefix(strings.ToLower(s), strings.ToLower(fmt.Sprint(cond.Value)))
	case domain.OperatorEndsWith:
		s, ok := actual.(string)
		return ok && strings.HasSuffix(strings.ToLower(s), strings.ToLower(fmt.Sprint(cond.Value)))
	default:
		return false
	}
}

// looseEqual compares numbers numerically, including numeric strings.
func looseEqual(actual, expected any) bool {
	if valueutil.Equal(actual, expected) {
		return true
	}
	af, aok := valueutil.AsFloat(actual, true)
	ef, eok := valueutil.AsFloat(expected, true)
	if aok && eok {
		return af == ef
	}
	if ab, ok := actual.(bool); ok {
		if es, ok := expected.(string); ok {
			return strings.EqualFold(es, fmt.Sprint(ab))
		}
	}
	return false
}

func compare(actual, expected any, accept func(int) bool) bool {
	af, aok := valueutil.AsFloat(actual, true)
	ef, eok := valueutil.AsFloat(expected, true)
	if aok && eok {
		switch {
		case af < ef:
			return accept(-1)
		case af > ef:
			return accept(1)
		default:
			return accept(0)
		}
	}
	as, aok := actual.(string)
	es, eok := expected.(string)
	if aok && eok {
		return accept(strings.Compare(as, es))
	}
	return false
}

// contains reports whether haystack (string, list or map keys) holds needle.
func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case string:
		if needle == nil {
			return false
		}
		return strings.Contains(strings.ToLower(h), strings.ToLower(valueutil.Stringify(needle)))
	case map[string]any:
		key, ok := needle.(string)
		if !ok {
			return false
		}
		_, present := h[key]
		return present
	}
	kind := reflect.ValueOf(haystack).Kind()
	if kind != reflect.Slice && kind != reflect.Array {
		return false
	}
	items, _ := valueutil.Items(haystack)
	for _, item := range items {
		if looseEqual(item, needle) {
			return true
		}
	}
	return false
}
