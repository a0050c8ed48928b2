package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/erp/gridsync/internal/domain/shared"
)

// Kind is the value type of a field
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDecimal
	KindBool
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Field declares one column of a grid.
//
// Tracked fields take part in change detection. Untracked fields (audit or
// display only, e.g. "last modified by") never make a row dirty.
// Rules is a go-playground/validator tag applied to normalised input.
type Field struct {
	Name     string
	Kind     Kind
	Tracked  bool
	Required bool
	ReadOnly bool
	Rules    string
}

// KeySeparator joins the parts of a composite natural key
const KeySeparator = "|"

// PositionalPrefix marks identities assigned to rows without a natural key
const PositionalPrefix = "pos-"

var validate = validator.New()

// Schema describes the fields of one grid and how rows are identified.
type Schema struct {
	Name   string
	Key    []string
	Fields []Field
	index  map[string]int
}

// NewSchema creates a schema. Key fields must be declared in fields.
func NewSchema(name string, key []string, fields ...Field) *Schema {
	s := &Schema{
		Name:   name,
		Key:    key,
		Fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		s.index[f.Name] = i
	}
	for _, k := range key {
		if _, ok := s.index[k]; !ok {
			panic(fmt.Sprintf("grid: schema %s: key field %q is not declared", name, k))
		}
	}
	return s
}

// Field looks up a field declaration by name
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// TrackedFields returns the names of all tracked fields in declaration order
func (s *Schema) TrackedFields() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Tracked {
			names = append(names, f.Name)
		}
	}
	return names
}

// IsKey reports whether the field is part of the natural key
func (s *Schema) IsKey(name string) bool {
	for _, k := range s.Key {
		if k == name {
			return true
		}
	}
	return false
}

// IdentityOf derives a row identity from its natural key, falling back to a
// positional identity when any key part is empty.
func (s *Schema) IdentityOf(values Values, ordinal int) Identity {
	if len(s.Key) == 0 {
		return positional(ordinal)
	}
	parts := make([]string, 0, len(s.Key))
	for _, k := range s.Key {
		part := strings.TrimSpace(stringOf(values[k]))
		if part == "" {
			return positional(ordinal)
		}
		parts = append(parts, part)
	}
	return Identity(strings.Join(parts, KeySeparator))
}

func positional(ordinal int) Identity {
	return Identity(PositionalPrefix + strconv.Itoa(ordinal))
}

// Normalize converts raw input for a field into its canonical kind and runs
// the field's validation rules.
func (s *Schema) Normalize(field string, raw any) (any, error) {
	f, ok := s.Field(field)
	if !ok {
		return nil, shared.NewDomainError("VALIDATION_REJECTED", fmt.Sprintf("unknown field %q", field))
	}
	value, err := convert(f.Kind, raw)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_REJECTED", fmt.Sprintf("%s: %v", field, err))
	}
	if f.Rules != "" && value != nil {
		if err := validate.Var(validationValue(value), f.Rules); err != nil {
			return nil, shared.NewDomainError("VALIDATION_REJECTED",
				fmt.Sprintf("%s: value %v does not satisfy %q", field, raw, f.Rules))
		}
	}
	return value, nil
}

// NormalizeValues normalises every declared field in values. Unknown fields
// are dropped and absent fields take their kind's zero value.
func (s *Schema) NormalizeValues(values Values) (Values, error) {
	out := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		raw, present := values[f.Name]
		if !present || raw == nil {
			out[f.Name] = zeroOf(f.Kind)
			continue
		}
		v, err := s.Normalize(f.Name, raw)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// Coerce converts backend values into their field kinds without running
// validation rules. Values that cannot be converted are kept as they are.
func (s *Schema) Coerce(values Values) Values {
	out := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		raw := values[f.Name]
		v, err := convert(f.Kind, raw)
		if err != nil {
			out[f.Name] = raw
			continue
		}
		out[f.Name] = v
	}
	return out
}

// MissingRequired lists required fields that are empty in values
func (s *Schema) MissingRequired(values Values) []string {
	var missing []string
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if isEmpty(f.Kind, values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// EqualValue compares two values of the given field with kind-aware equality
func (s *Schema) EqualValue(field string, a, b any) bool {
	f, ok := s.Field(field)
	if !ok {
		return stringOf(a) == stringOf(b)
	}
	return equal(f.Kind, a, b)
}

func equal(kind Kind, a, b any) bool {
	switch kind {
	case KindDecimal:
		da, errA := convert(KindDecimal, a)
		db, errB := convert(KindDecimal, b)
		if errA != nil || errB != nil {
			return stringOf(a) == stringOf(b)
		}
		return da.(decimal.Decimal).Equal(db.(decimal.Decimal))
	case KindInt:
		ia, errA := convert(KindInt, a)
		ib, errB := convert(KindInt, b)
		if errA != nil || errB != nil {
			return stringOf(a) == stringOf(b)
		}
		return ia == ib
	case KindBool:
		ba, errA := convert(KindBool, a)
		bb, errB := convert(KindBool, b)
		if errA != nil || errB != nil {
			return stringOf(a) == stringOf(b)
		}
		return ba == bb
	default:
		return stringOf(a) == stringOf(b)
	}
}

func convert(kind Kind, raw any) (any, error) {
	if raw == nil {
		return zeroOf(kind), nil
	}
	switch kind {
	case KindString:
		return stringOf(raw), nil
	case KindInt:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("%v is not an integer", v)
			}
			return int64(v), nil
		case decimal.Decimal:
			if !v.IsInteger() {
				return nil, fmt.Errorf("%s is not an integer", v)
			}
			return v.IntPart(), nil
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return int64(0), nil
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", v)
			}
			return n, nil
		}
	case KindDecimal:
		switch v := raw.(type) {
		case decimal.Decimal:
			return v, nil
		case int64:
			return decimal.NewFromInt(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return decimal.Zero, nil
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", v)
			}
			return d, nil
		}
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", v)
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", raw, kind)
}

func validationValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return v
}

func zeroOf(kind Kind) any {
	switch kind {
	case KindInt:
		return int64(0)
	case KindDecimal:
		return decimal.Zero
	case KindBool:
		return false
	default:
		return ""
	}
}

func isEmpty(kind Kind, v any) bool {
	if v == nil {
		return true
	}
	if kind == KindString {
		return strings.TrimSpace(stringOf(v)) == ""
	}
	return false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
