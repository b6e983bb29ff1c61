package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator is a comparison operator usable in a trigger condition.
type Operator string

const (
	OperatorEq       Operator = "eq"
	OperatorNeq      Operator = "neq"
	OperatorGt       Operator = "gt"
	OperatorLt       Operator = "lt"
	OperatorGte      Operator = "gte"
	OperatorLte      Operator = "lte"
	OperatorContains Operator = "contains"
	OperatorIn       Operator = "in"
)

// IsKnownOperator reports whether op is a supported condition operator.
func IsKnownOperator(op Operator) bool {
	switch op {
	case OperatorEq, OperatorNeq, OperatorGt, OperatorLt,
		OperatorGte, OperatorLte, OperatorContains, OperatorIn:
		return true
	default:
		return false
	}
}

// Predicate compares one dotted-path field of a business event against a
// literal value. A workflow's predicates are ANDed; there is no OR support.
type Predicate struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// Validate rejects predicates that could never evaluate: empty field paths
// and unknown operators. Value shapes are not checked; a mismatched value
// simply never matches at evaluation time.
func (p Predicate) Validate() error {
	if strings.TrimSpace(p.Field) == "" {
		return errors.New("predicate field is required")
	}

	if !IsKnownOperator(p.Operator) {
		return fmt.Errorf("unknown operator %q", p.Operator)
	}

	return nil
}

// EvaluateConditions reports whether every predicate holds against the event.
// An empty condition list is an unconditional trigger. A predicate whose field
// is absent from the event evaluates false rather than erroring, so a workflow
// referencing a field a given event type never carries simply never matches.
func EvaluateConditions(conditions []Predicate, event BusinessEvent) bool {
	for _, condition := range conditions {
		if !condition.Evaluate(event) {
			return false
		}
	}

	return true
}

// Evaluate applies the predicate to a single event.
func (p Predicate) Evaluate(event BusinessEvent) bool {
	actual, exists := event.Field(p.Field)
	if !exists {
		return false
	}

	switch p.Operator {
	case OperatorEq:
		return looseEqual(actual, p.Value)
	case OperatorNeq:
		return !looseEqual(actual, p.Value)
	case OperatorGt:
		return compareNumeric(actual, p.Value, func(a, b float64) bool { return a > b })
	case OperatorLt:
		return compareNumeric(actual, p.Value, func(a, b float64) bool { return a < b })
	case OperatorGte:
		return compareNumeric(actual, p.Value, func(a, b float64) bool { return a >= b })
	case OperatorLte:
		return compareNumeric(actual, p.Value, func(a, b float64) bool { return a <= b })
	case OperatorContains:
		return containsValue(actual, p.Value)
	case OperatorIn:
		return inValue(actual, p.Value)
	default:
		return false
	}
}

// looseEqual compares two values, case-insensitively for strings and
// numerically when both sides coerce to numbers.
func looseEqual(actual, expected any) bool {
	actualNum, actualOK := toFloat(actual)
	expectedNum, expectedOK := toFloat(expected)

	if actualOK && expectedOK {
		return actualNum == expectedNum
	}

	return strings.EqualFold(stringify(actual), stringify(expected))
}

func compareNumeric(actual, expected any, cmp func(a, b float64) bool) bool {
	actualNum, actualOK := toFloat(actual)
	expectedNum, expectedOK := toFloat(expected)

	if !actualOK || !expectedOK {
		return false
	}

	return cmp(actualNum, expectedNum)
}

func containsValue(actual, expected any) bool {
	return strings.Contains(
		strings.ToLower(stringify(actual)),
		strings.ToLower(stringify(expected)),
	)
}

// inValue accepts a JSON array literal or a comma-separated string as the
// expected membership set.
func inValue(actual, expected any) bool {
	switch set := expected.(type) {
	case []any:
		for _, member := range set {
			if looseEqual(actual, member) {
				return true
			}
		}

		return false
	case []string:
		for _, member := range set {
			if looseEqual(actual, member) {
				return true
			}
		}

		return false
	case string:
		for _, member := range strings.Split(set, ",") {
			if looseEqual(actual, strings.TrimSpace(member)) {
				return true
			}
		}

		return false
	default:
		return looseEqual(actual, expected)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
