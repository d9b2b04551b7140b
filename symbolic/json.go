package symbolic

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ============================================================
// JSON Serialization
// ============================================================

// ToJSON encodes e as a tree of {"type": ...} objects.
func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(Encode(e))
	return string(b), err
}

// Encode returns the JSON object form of e.
func Encode(e Expr) map[string]any {
	switch v := e.(type) {
	case *Num:
		return map[string]any{"type": "num", "value": v.val.RatString()}
	case *Const:
		return map[string]any{"type": "const", "name": v.name}
	case *Sym:
		return map[string]any{"type": "sym", "name": v.name}
	case *Add:
		return map[string]any{"type": "add", "terms": encodeAll(v.terms)}
	case *Mul:
		return map[string]any{"type": "mul", "factors": encodeAll(v.factors)}
	case *Pow:
		return map[string]any{"type": "pow", "base": Encode(v.base), "exp": Encode(v.exp)}
	case *Func:
		return map[string]any{"type": "func", "name": v.name, "arg": Encode(v.arg)}
	}
	panic(fmt.Sprintf("symbolic: cannot encode %T", e))
}

func encodeAll(es []Expr) []any {
	out := make([]any, len(es))
	for i, e := range es {
		out[i] = Encode(e)
	}
	return out
}

// FromJSON decodes the object form produced by Encode.
func FromJSON(data map[string]any) (Expr, error) {
	if data == nil {
		return nil, fmt.Errorf("expression must be an object")
	}
	typ, ok := data["type"].(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("field 'type' must be a non-empty string")
	}

	subObj := func(field string) (map[string]any, error) {
		m, ok := data[field].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an object", typ, field)
		}
		return m, nil
	}
	subString := func(field string) (string, error) {
		s, ok := data[field].(string)
		if !ok || s == "" {
			return "", fmt.Errorf("%s: %q must be a non-empty string", typ, field)
		}
		return s, nil
	}
	subList := func(field string) ([]Expr, error) {
		raw, ok := data[field].([]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an array", typ, field)
		}
		out := make([]Expr, len(raw))
		for i, it := range raw {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: %q[%d] must be an object", typ, field, i)
			}
			e, err := FromJSON(m)
			if err != nil {
				return nil, fmt.Errorf("%s: %s[%d]: %w", typ, field, i, err)
			}
			out[i] = e
		}
		return out, nil
	}

	switch typ {
	case "num":
		val, err := subString("value")
		if err != nil {
			return nil, err
		}
		r, ok := new(big.Rat).SetString(val)
		if !ok {
			return nil, fmt.Errorf("invalid num value: %s", val)
		}
		return &Num{val: r}, nil

	case "const":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		switch name {
		case Pi.name:
			return Pi, nil
		case Euler.name:
			return Euler, nil
		}
		return nil, fmt.Errorf("const: unknown constant %q", name)

	case "sym":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		return S(name), nil

	case "add":
		terms, err := subList("terms")
		if err != nil {
			return nil, err
		}
		return AddOf(terms...), nil

	case "mul":
		factors, err := subList("factors")
		if err != nil {
			return nil, err
		}
		return MulOf(factors...), nil

	case "pow":
		baseM, err := subObj("base")
		if err != nil {
			return nil, err
		}
		expM, err := subObj("exp")
		if err != nil {
			return nil, err
		}
		base, err := FromJSON(baseM)
		if err != nil {
			return nil, fmt.Errorf("pow: base: %w", err)
		}
		exp, err := FromJSON(expM)
		if err != nil {
			return nil, fmt.Errorf("pow: exp: %w", err)
		}
		return PowOf(base, exp), nil

	case "func":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		argM, err := subObj("arg")
		if err != nil {
			return nil, err
		}
		arg, err := FromJSON(argM)
		if err != nil {
			return nil, fmt.Errorf("func: arg: %w", err)
		}
		e, ok := FuncOf(name, arg)
		if !ok {
			return nil, fmt.Errorf("func: unknown function %q", name)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unknown expression type: %s", typ)
}
