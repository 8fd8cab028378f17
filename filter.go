/*
Copyright (C) 2026  YourDB Contributors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package yourdb

import "fmt"

// Filter is the query grammar: {field: scalar} for equality, or
// {field: {"$gt"|"$lt"|"$gte"|"$lte"|"$ne"|"$eq": scalar}} for an operator
// predicate. Top-level fields are AND-combined. A nil Filter means "match
// everything".
type Filter map[string]any

var validOps = map[string]bool{"$gt": true, "$lt": true, "$gte": true, "$lte": true, "$ne": true, "$eq": true}

type predicate struct {
	field string
	op    string // "$eq" for bare scalar equality
	value any
}

// compileFilter splits a Filter into per-field predicates and validates that
// every operator is recognized and every operand's kind matches the
// field's declared kind.
func compileFilter(f Filter, schema *Schema) ([]predicate, error) {
	preds := make([]predicate, 0, len(f))
	for field, raw := range f {
		kind, declared := schema.Fields[field]
		if !declared {
			return nil, &SchemaViolation{Field: field, Expected: "declared field", Got: "unknown"}
		}
		if opMap, ok := raw.(map[string]any); ok {
			for op, operand := range opMap {
				if !validOps[op] {
					return nil, fmt.Errorf("yourdb: unknown filter operator %q", op)
				}
				if err := checkOperandKind(operand, kind, field); err != nil {
					return nil, err
				}
				preds = append(preds, predicate{field: field, op: op, value: operand})
			}
			continue
		}
		if err := checkOperandKind(raw, kind, field); err != nil {
			return nil, err
		}
		preds = append(preds, predicate{field: field, op: "$eq", value: raw})
	}
	return preds, nil
}

func checkOperandKind(v any, kind Kind, field string) error {
	got, ok := kindOf(v)
	if !ok || got != kind {
		return &KindMismatch{Field: field, Expected: kind, Got: v}
	}
	return nil
}

// planAndExecute implements the "deliberately simple" planner from
// spec.md 4.6/4.9: one equality seed drawn from the smallest matching
// indexed bucket (ties broken by bucket size, not by field order), then
// linear evaluation of every remaining predicate over the candidate set.
// Cost-based planning beyond this single seed choice is an explicit
// non-goal.
func planAndExecute(index *IndexSet, schema *Schema, f Filter) ([]Record, error) {
	if f == nil {
		return index.Scan(), nil
	}
	preds, err := compileFilter(f, schema)
	if err != nil {
		return nil, err
	}

	seedIdx := -1
	seedBucket := -1
	for i, p := range preds {
		if p.op != "$eq" || !schema.IsIndexed(p.field) {
			continue
		}
		size := index.BucketSize(p.field, p.value)
		if seedIdx == -1 || size < seedBucket {
			seedIdx = i
			seedBucket = size
		}
	}

	var candidates []Record
	var remaining []predicate
	if seedIdx >= 0 {
		seed := preds[seedIdx]
		pks := index.Lookup(seed.field, seed.value)
		candidates = make([]Record, 0, len(pks))
		for _, pk := range pks {
			if rec, ok := index.Get(pk); ok {
				candidates = append(candidates, rec)
			}
		}
		for i, p := range preds {
			if i != seedIdx {
				remaining = append(remaining, p)
			}
		}
	} else {
		candidates = index.Scan()
		remaining = preds
	}

	if len(remaining) == 0 {
		return candidates, nil
	}

	out := make([]Record, 0, len(candidates))
	for _, rec := range candidates {
		if matchesAll(rec, remaining) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matchesAll(rec Record, preds []predicate) bool {
	for _, p := range preds {
		v, ok := rec.Get(p.field)
		if !ok || !matchesOp(v, p.op, p.value) {
			return false
		}
	}
	return true
}

func matchesOp(field any, op string, operand any) bool {
	switch op {
	case "$eq":
		return scalarEqual(field, operand)
	case "$ne":
		return !scalarEqual(field, operand)
	case "$gt":
		return scalarCompare(field, operand) > 0
	case "$lt":
		return scalarCompare(field, operand) < 0
	case "$gte":
		return scalarCompare(field, operand) >= 0
	case "$lte":
		return scalarCompare(field, operand) <= 0
	default:
		return false
	}
}

func scalarEqual(a, b any) bool {
	return a == b
}

// scalarCompare returns <0, 0, >0 for a<b, a==b, a>b. Only called after
// compileFilter has already confirmed a and b share the declared kind.
func scalarCompare(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av && bv {
			return -1
		}
		return 1
	default:
		return 0
	}
}
