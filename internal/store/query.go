package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Filter compares the value at a dotted Field path with Value. Paths that
// cross an array (items.supplier_id) yield every element's value; eq and
// contains then match when any element matches.
type Filter struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

func Eq(field string, v any) Filter       { return Filter{Field: field, Op: OpEq, Value: v} }
func In(field string, v any) Filter       { return Filter{Field: field, Op: OpIn, Value: v} }
func Gte(field string, v any) Filter      { return Filter{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Filter       { return Filter{Field: field, Op: OpLt, Value: v} }
func Contains(field string, v any) Filter { return Filter{Field: field, Op: OpContains, Value: v} }

// compiledQuery holds filter values normalized to their JSON form so they
// compare like the decoded document values.
type compiledQuery struct {
	Query
	values []any
}

func compile(q Query) (*compiledQuery, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("query: collection is required")
	}
	cq := &compiledQuery{Query: q, values: make([]any, len(q.Filters))}
	for i, f := range q.Filters {
		switch f.Op {
		case OpEq, OpIn, OpGt, OpGte, OpLt, OpLte, OpContains:
		default:
			return nil, fmt.Errorf("query: unknown operator %q", f.Op)
		}
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("query: filter %s: %w", f.Field, err)
		}
		if f.Op == OpIn {
			if _, ok := v.([]any); !ok {
				return nil, fmt.Errorf("query: filter %s: in requires a list", f.Field)
			}
		}
		cq.values[i] = v
	}
	return cq, nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cq *compiledQuery) matches(doc Document) bool {
	if doc.Collection != cq.Collection {
		return false
	}
	if len(cq.Filters) == 0 {
		return true
	}
	var body map[string]any
	if err := json.Unmarshal(doc.Data, &body); err != nil {
		return false
	}
	for i, f := range cq.Filters {
		if !matchFilter(lookup(body, f.Field), f.Op, cq.values[i]) {
			return false
		}
	}
	return true
}

// lookup resolves a dotted path. It returns a []any when the path crosses an
// array, nil when the field is missing.
func lookup(body any, path string) any {
	cur := body
	parts := strings.Split(path, ".")
	for i, part := range parts {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[part]
		case []any:
			rest := strings.Join(parts[i:], ".")
			out := make([]any, 0, len(node))
			for _, elem := range node {
				switch v := lookup(elem, rest).(type) {
				case nil:
				case []any:
					out = append(out, v...)
				default:
					out = append(out, v)
				}
			}
			return out
		default:
			return nil
		}
	}
	return cur
}

func matchFilter(field any, op Op, want any) bool {
	if list, ok := field.([]any); ok && op != OpIn {
		switch op {
		case OpEq, OpContains:
			for _, elem := range list {
				if equal(elem, want) {
					return true
				}
			}
		}
		return false
	}

	switch op {
	case OpEq:
		return equal(field, want)
	case OpIn:
		for _, candidate := range want.([]any) {
			if equal(field, candidate) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := field.(string)
		sub, ok2 := want.(string)
		return ok && ok2 && strings.Contains(s, sub)
	}

	c, ok := compare(field, want)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// equal is exact: values of different JSON types never match and strings
// are compared byte for byte, the same as the SQLite pushdown. Coercion
// to timestamps or decimals is only for range operators.
func equal(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// compare orders two JSON scalars: numbers numerically, strings as
// timestamps when both parse as RFC3339, as decimals when both parse as
// numbers, otherwise lexically.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmpFloat(av, bv), true
		case string:
			bd, err := decimal.NewFromString(bv)
			if err != nil {
				return 0, false
			}
			return decimal.NewFromFloat(av).Cmp(bd), true
		}
	case string:
		switch bv := b.(type) {
		case string:
			return compareStrings(av, bv), true
		case float64:
			ad, err := decimal.NewFromString(av)
			if err != nil {
				return 0, false
			}
			return ad.Cmp(decimal.NewFromFloat(bv)), true
		}
	}
	return 0, false
}

func compareStrings(a, b string) int {
	if at, err := time.Parse(time.RFC3339Nano, a); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, b); err == nil {
			return at.Compare(bt)
		}
	}
	if ad, err := decimal.NewFromString(a); err == nil {
		if bd, err := decimal.NewFromString(b); err == nil {
			return ad.Cmp(bd)
		}
	}
	return strings.Compare(a, b)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// apply filters, orders and limits a loaded collection.
func (cq *compiledQuery) apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if cq.matches(d) {
			out = append(out, d)
		}
	}

	if cq.OrderBy != "" {
		keys := make(map[string]any, len(out))
		for _, d := range out {
			var body map[string]any
			if err := json.Unmarshal(d.Data, &body); err == nil {
				keys[d.ID] = lookup(body, cq.OrderBy)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			c, ok := compare(keys[out[i].ID], keys[out[j].ID])
			if !ok || c == 0 {
				return out[i].ID < out[j].ID
			}
			if cq.Descending {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	if cq.Limit > 0 && len(out) > cq.Limit {
		out = out[:cq.Limit]
	}
	return out
}
