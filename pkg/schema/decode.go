package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// Data is the validated, typed field bag of an observation. Values are
// string, int64, float64, bool or []string.
type Data map[string]any

// Decode coerces and validates raw payload values against t. Envelope
// keys and keys the type does not declare are dropped. Null and empty
// values are accepted for optional fields and left out of the result.
func (t *Type) Decode(ctx context.Context, raw map[string]any, res Resolver) (Data, error) {
	out := make(Data, len(t.Fields))
	for _, f := range t.Fields {
		v, present := raw[f.Name]
		if present && isEmpty(v) {
			present = false
		}
		if !present {
			if f.Required {
				return nil, errors.NewValidationError(f.Name, nil, "is required")
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		coerced, err := f.coerce(v)
		if err != nil {
			return nil, err
		}
		if err := f.check(ctx, coerced, res); err != nil {
			return nil, err
		}
		out[f.Name] = coerced
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func (f Field) invalid(v any, msg string) error {
	return errors.NewValidationError(f.Name, v, msg)
}

// coerce converts JSON or form values into the field's Go representation.
func (f Field) coerce(v any) (any, error) {
	switch f.Kind {
	case KindString, KindText, KindChoice, KindLookup:
		s, ok := scalarString(v)
		if !ok {
			return nil, f.invalid(v, "expected a string")
		}
		return strings.TrimSpace(s), nil
	case KindInt, KindTaxon, KindUser, KindFile:
		n, err := toInt(v)
		if err != nil {
			return nil, f.invalid(v, "expected an integer")
		}
		return n, nil
	case KindFloat:
		n, err := toFloat(v)
		if err != nil {
			return nil, f.invalid(v, "expected a number")
		}
		return n, nil
	case KindBool:
		b, err := toBool(v)
		if err != nil {
			return nil, f.invalid(v, "expected a boolean")
		}
		return b, nil
	case KindDate:
		s, _ := scalarString(v)
		d, err := parseTime(s)
		if err != nil {
			return nil, f.invalid(v, "expected a date (YYYY-MM-DD)")
		}
		return d.Format(time.DateOnly), nil
	case KindDateTime:
		s, _ := scalarString(v)
		d, err := parseTime(s)
		if err != nil {
			return nil, f.invalid(v, "expected an RFC 3339 timestamp")
		}
		return d.UTC().Format(time.RFC3339), nil
	case KindLookups:
		return toStrings(v)
	default:
		return nil, f.invalid(v, fmt.Sprintf("unsupported field kind %q", f.Kind))
	}
}

// check validates a coerced value against choices, bounds and references.
func (f Field) check(ctx context.Context, v any, res Resolver) error {
	switch f.Kind {
	case KindChoice:
		if !slices.Contains(f.Choices, v.(string)) {
			return f.invalid(v, fmt.Sprintf("must be one of %s", strings.Join(f.Choices, ", ")))
		}
	case KindInt, KindFloat:
		var n float64
		if i, ok := v.(int64); ok {
			n = float64(i)
		} else {
			n = v.(float64)
		}
		if f.Min != nil && n < *f.Min {
			return f.invalid(v, fmt.Sprintf("must be at least %g", *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			return f.invalid(v, fmt.Sprintf("must be at most %g", *f.Max))
		}
	case KindLookup:
		return f.checkLookup(ctx, res, v.(string))
	case KindLookups:
		for _, code := range v.([]string) {
			if err := f.checkLookup(ctx, res, code); err != nil {
				return err
			}
		}
	case KindTaxon, KindUser, KindFile:
		if res == nil {
			return nil
		}
	}
	switch f.Kind {
	case KindTaxon:
		return f.checkRef(v, func() (bool, error) { return res.TaxonExists(ctx, v.(int64)) })
	case KindUser:
		return f.checkRef(v, func() (bool, error) { return res.UserExists(ctx, v.(int64)) })
	case KindFile:
		return f.checkRef(v, func() (bool, error) { return res.AttachmentExists(ctx, v.(int64)) })
	}
	return nil
}

func (f Field) checkLookup(ctx context.Context, res Resolver, code string) error {
	if res == nil {
		return nil
	}
	ok, err := res.LookupExists(ctx, f.Lookup, code)
	if err != nil {
		return err
	}
	if !ok {
		return f.invalid(code, fmt.Sprintf("unknown %s code %q", f.Lookup, code))
	}
	return nil
}

func (f Field) checkRef(v any, exists func() (bool, error)) error {
	ok, err := exists()
	if err != nil {
		return err
	}
	if !ok {
		return f.invalid(v, "referenced record does not exist")
	}
	return nil
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	case []any:
		if len(x) == 1 {
			return scalarString(x[0])
		}
	case []string:
		if len(x) == 1 {
			return x[0], true
		}
	}
	return "", false
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	default:
		s, ok := scalarString(v)
		if !ok {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	default:
		s, ok := scalarString(v)
		if !ok {
			return 0, fmt.Errorf("not a number: %v", v)
		}
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
}

func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	s, ok := scalarString(v)
	if !ok {
		return false, fmt.Errorf("not a boolean: %v", v)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "t", "y":
		return true, nil
	case "false", "0", "no", "off", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

// toStrings accepts a list, a single string, or a JSON-encoded list string.
func toStrings(v any) ([]string, error) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case []string:
		out := make([]string, 0, len(x))
		for _, s := range x {
			out = append(out, splitCodes(s)...)
		}
		return out, nil
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			var list []string
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return list, nil
			}
		}
		return splitCodes(s), nil
	default:
		items = []any{v}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := scalarString(item)
		if !ok {
			return nil, fmt.Errorf("expected a list of codes, got %v", item)
		}
		out = append(out, splitCodes(s)...)
	}
	return out, nil
}

func splitCodes(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
