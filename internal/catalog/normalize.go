// Package catalog turns raw report rows into typed service records and joins
// them with the locally kept cost overrides.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names used by the report rows.
const (
	FieldID       = "id"
	FieldName     = "servico"
	FieldDuration = "tempo"
	FieldPrice    = "valor"
	FieldCategory = "categoria"
)

// alternateIDFields are tried in order when the rows carry no id.
var alternateIDFields = []string{"uuid", "_id", "code", "codigo"}

// RawRecord is one report row as decoded from JSON, numbers kept as
// json.Number.
type RawRecord map[string]any

// ServiceRecord is a validated service from the remote catalog.
type ServiceRecord struct {
	ID       string
	Name     string
	Duration int // minutes
	Price    decimal.NullDecimal
	Category string
}

// ValidationError reports the first row that could not be normalized.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("service record %d: field %q %s", e.Index, e.Field, e.Reason)
}

// Normalize converts a whole batch. It fails on the first record missing a
// required field; nothing from a failed batch is returned.
func Normalize(raws []RawRecord) ([]ServiceRecord, error) {
	ids := resolveIDs(raws)

	out := make([]ServiceRecord, 0, len(raws))
	for i, raw := range raws {
		rec := ServiceRecord{ID: ids[i]}

		v, ok := present(raw, FieldName)
		if !ok {
			return nil, missing(i, FieldName)
		}
		name, ok := v.(string)
		if !ok {
			return nil, &ValidationError{Index: i, Field: FieldName, Reason: fmt.Sprintf("must be a string, got %T", v)}
		}
		rec.Name = name

		v, ok = present(raw, FieldDuration)
		if !ok {
			return nil, missing(i, FieldDuration)
		}
		duration, err := toInt(v)
		if err != nil {
			return nil, &ValidationError{Index: i, Field: FieldDuration, Reason: err.Error()}
		}
		rec.Duration = duration

		v, ok = present(raw, FieldCategory)
		if !ok {
			return nil, missing(i, FieldCategory)
		}
		category, err := toText(v)
		if err != nil {
			return nil, &ValidationError{Index: i, Field: FieldCategory, Reason: err.Error()}
		}
		rec.Category = category

		if v, ok := present(raw, FieldPrice); ok {
			price, err := toDecimal(v)
			if err != nil {
				return nil, &ValidationError{Index: i, Field: FieldPrice, Reason: err.Error()}
			}
			rec.Price = decimal.NullDecimal{Decimal: price, Valid: true}
		}

		out = append(out, rec)
	}
	return out, nil
}

// resolveIDs picks one identifier source for the whole batch: the id field,
// then the first alternate key, then the row position. A source is used only
// if every row carries it and its values are unique.
func resolveIDs(raws []RawRecord) []string {
	for _, field := range append([]string{FieldID}, alternateIDFields...) {
		if ids, ok := idsFrom(raws, field); ok {
			return ids
		}
	}

	ids := make([]string, len(raws))
	for i := range raws {
		ids[i] = strconv.Itoa(i)
	}
	return ids
}

func idsFrom(raws []RawRecord, field string) ([]string, bool) {
	if len(raws) == 0 {
		return nil, false
	}
	ids := make([]string, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		v, ok := present(raw, field)
		if !ok {
			return nil, false
		}
		id, err := toText(v)
		if err != nil || id == "" {
			return nil, false
		}
		if _, dup := seen[id]; dup {
			return nil, false
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	return ids, true
}

// present treats JSON null like an absent key.
func present(raw RawRecord, field string) (any, bool) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func missing(i int, field string) error {
	return &ValidationError{Index: i, Field: field, Reason: "is required"}
}

func toInt(v any) (int, error) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		parsed, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("is not a number: %q", t.String())
		}
		f = parsed
	case float64:
		f = t
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("is not a number: %q", t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}

	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("must be a whole number, got %v", f)
	}
	return int(f), nil
}

func toText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("must be text, got %T", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("is not a number: %q", t.String())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, fmt.Errorf("is not a number: %q", t)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("must be a number, got %T", v)
	}
}
