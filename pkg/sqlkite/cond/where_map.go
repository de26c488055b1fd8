package cond

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

var (
	// ErrUnsupportedOperator reports an operator FromMap does not understand.
	ErrUnsupportedOperator = errors.New("[cond] unsupported operator")

	errSplitEmptyKey      = errors.New("[cond] couldn't split an empty key")
	errOrValueType        = errors.New(`[cond] the value of "_or" must be of []map[string]any type`)
	errCustomValueType    = errors.New(`[cond] the value of "_custom_" must implement Condition`)
	errBetweenValueLength = errors.New(`[cond] the value of "between" must contain exactly two elements`)
	errUnknownControlKey  = errors.New("[cond] unknown control key")

	errWhereSliceType      = `[cond] the value of "%s" must be a slice`
	errEmptySliceCondition = `[cond] the value of "%s" must contain at least one element`
)

// NullType marks a where-map value as a NULL test.
type NullType byte

const (
	_ NullType = iota
	// NullValue renders "field IS NULL".
	NullValue
	// NotNullValue renders "field IS NOT NULL".
	NotNullValue
)

func (nt NullType) String() string {
	if nt == NullValue {
		return "IS NULL"
	}

	return "IS NOT NULL"
}

const (
	opEq         = "="
	opNe1        = "!="
	opNe2        = "<>"
	opIn         = "in"
	opNotIn      = "not in"
	opGt         = ">"
	opGte        = ">="
	opLt         = "<"
	opLte        = "<="
	opLike       = "like"
	opNotLike    = "not like"
	opBetween    = "between"
	opNotBetween = "not between"
	opNull       = "null"
)

// opOrder fixes the order in which operator groups are emitted.
var opOrder = []string{opEq, opIn, opNe1, opNe2, opNotIn, opGt, opGte, opLt, opLte, opLike, opNotLike, opBetween, opNotBetween, opNull}

type whereEntry struct {
	field string
	val   any
}

// FromMap parses the where-map syntax into a Condition:
//
//	"name": "x"             name = ?
//	"age >=": 18            age >= ?
//	"id": []int{1, 2}       id IN (?, ?)
//	"score between": []any  score BETWEEN ? AND ?
//	"deleted_at": NullValue deleted_at IS NULL
//	"_or": []map[string]any each branch ANDed, branches ORed
//	"_custom_x": Condition  used as is
//
// Keys are sorted and grouped by operator so the rendering is deterministic. Values of
// type expr.Raw are emitted verbatim instead of being bound.
func FromMap(where map[string]any) (Condition, error) {
	if len(where) == 0 {
		return Empty(), nil
	}

	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var (
		conds  []Condition
		groups = make(map[string][]whereEntry)
	)

	for _, key := range keys {
		val := where[key]

		switch {
		case strings.HasPrefix(key, "_or"):
			orWheres, ok := val.([]map[string]any)
			if !ok {
				return nil, errOrValueType
			}

			branches := make([]Condition, 0, len(orWheres))

			for _, orWhere := range orWheres {
				if orWhere == nil {
					continue
				}

				c, err := FromMap(orWhere)
				if err != nil {
					return nil, err
				}

				branches = append(branches, c)
			}

			conds = append(conds, Or(branches...))

			continue
		case strings.HasPrefix(key, "_custom_"):
			c, ok := val.(Condition)
			if !ok {
				return nil, errCustomValueType
			}

			conds = append(conds, c)

			continue
		case strings.HasPrefix(key, "_"):
			return nil, fmt.Errorf("%w: %s", errUnknownControlKey, key)
		}

		field, operator, err := splitKey(key, val)
		if err != nil {
			return nil, err
		}

		operator = strings.ToLower(operator)

		if _, ok := val.(NullType); ok {
			operator = opNull
		}

		groups[operator] = append(groups[operator], whereEntry{field: field, val: val})
	}

	for op := range groups {
		if !isStringInSlice(op, opOrder) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
		}
	}

	for _, op := range opOrder {
		for _, entry := range groups[op] {
			c, err := fromOperator(op, entry.field, entry.val)
			if err != nil {
				return nil, err
			}

			conds = append(conds, c)
		}
	}

	return And(conds...), nil
}

func fromOperator(op, field string, val any) (Condition, error) {
	switch op {
	case opEq:
		return Eq(field, raw(val)), nil
	case opNe1, opNe2:
		return Ne(field, raw(val)), nil
	case opGt:
		return Gt(field, raw(val)), nil
	case opGte:
		return Gte(field, raw(val)), nil
	case opLt:
		return Lt(field, raw(val)), nil
	case opLte:
		return Lte(field, raw(val)), nil
	case opLike:
		return Like(field, raw(val)), nil
	case opNotLike:
		return NotLike(field, raw(val)), nil
	case opNull:
		if val.(NullType) == NullValue {
			return IsNull(field), nil
		}

		return IsNotNull(field), nil
	}

	vals, err := toSlice(val, op)
	if err != nil {
		return nil, err
	}

	switch op {
	case opIn:
		return In(field, vals...), nil
	case opNotIn:
		return NotIn(field, vals...), nil
	}

	if len(vals) != 2 {
		return nil, errBetweenValueLength
	}

	if op == opBetween {
		return Between(field, vals[0], vals[1]), nil
	}

	return NotBetween(field, vals[0], vals[1]), nil
}

// raw keeps expr.Raw values verbatim; everything else is bound.
func raw(val any) any {
	if r, ok := val.(expr.Raw); ok {
		return r
	}

	return val
}

func toSlice(val any, op string) ([]any, error) {
	s := reflect.ValueOf(val)
	if s.Kind() != reflect.Slice {
		return nil, fmt.Errorf(errWhereSliceType, op)
	}

	if s.Len() == 0 {
		return nil, fmt.Errorf(errEmptySliceCondition, op)
	}

	out := make([]any, s.Len())
	for i := range out {
		out[i] = s.Index(i).Interface()
	}

	return out, nil
}

func splitKey(key string, val any) (field, operator string, err error) {
	key = strings.Trim(key, " ")
	if key == "" {
		return "", "", errSplitEmptyKey
	}

	idx := strings.IndexByte(key, ' ')
	if idx == -1 {
		operator = opEq
		if val != nil && reflect.ValueOf(val).Kind() == reflect.Slice {
			if _, isBytes := val.([]byte); !isBytes {
				operator = opIn
			}
		}

		return key, operator, nil
	}

	return key[:idx], removeInnerSpace(strings.Trim(key[idx+1:], " ")), nil
}

// removeInnerSpace collapses the run of spaces inside "not   in" to one.
func removeInnerSpace(operator string) string {
	firstSpace := strings.IndexByte(operator, ' ')
	if firstSpace == -1 {
		return operator
	}

	lastSpace := firstSpace

	for i := firstSpace + 1; i < len(operator); i++ {
		if operator[i] != ' ' {
			break
		}

		lastSpace = i
	}

	return operator[:firstSpace] + operator[lastSpace:]
}

func isStringInSlice(str string, arr []string) bool {
	for _, s := range arr {
		if s == str {
			return true
		}
	}

	return false
}
