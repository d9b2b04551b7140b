package symbolic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/hyperdual"
)

// ============================================================
// Compilation to closures
// ============================================================

// Compile turns e into a float64 closure over a point whose coordinates
// follow vars. Every free symbol of e must appear in vars.
func Compile(e Expr, vars []string) (func(x []float64) float64, error) {
	index := indexOf(vars)
	return compileFloat(e, index)
}

func indexOf(vars []string) map[string]int {
	index := make(map[string]int, len(vars))
	for i, v := range vars {
		index[v] = i
	}
	return index
}

func compileFloat(e Expr, index map[string]int) (func([]float64) float64, error) {
	switch v := e.(type) {
	case *Num:
		c := v.Float64()
		return func([]float64) float64 { return c }, nil
	case *Const:
		c := v.value
		return func([]float64) float64 { return c }, nil
	case *Sym:
		i, ok := index[v.name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownSymbol, v.name)
		}
		return func(x []float64) float64 { return x[i] }, nil
	case *Add:
		parts, err := compileFloats(v.terms, index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 {
			sum := 0.0
			for _, p := range parts {
				sum += p(x)
			}
			return sum
		}, nil
	case *Mul:
		parts, err := compileFloats(v.factors, index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 {
			prod := 1.0
			for _, p := range parts {
				prod *= p(x)
			}
			return prod
		}, nil
	case *Pow:
		base, err := compileFloat(v.base, index)
		if err != nil {
			return nil, err
		}
		if n, ok := v.exp.(*Num); ok {
			switch {
			case n.IsNegOne():
				return func(x []float64) float64 { return 1 / base(x) }, nil
			case n.Equal(F(1, 2)):
				return func(x []float64) float64 { return math.Sqrt(base(x)) }, nil
			}
			p := n.Float64()
			return func(x []float64) float64 { return math.Pow(base(x), p) }, nil
		}
		exp, err := compileFloat(v.exp, index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 { return math.Pow(base(x), exp(x)) }, nil
	case *Func:
		fn, ok := unary[v.name]
		if !ok {
			return nil, fmt.Errorf("symbolic: cannot compile function %q", v.name)
		}
		arg, err := compileFloat(v.arg, index)
		if err != nil {
			return nil, err
		}
		return func(x []float64) float64 { return fn(arg(x)) }, nil
	}
	return nil, fmt.Errorf("symbolic: cannot compile %T", e)
}

func compileFloats(es []Expr, index map[string]int) ([]func([]float64) float64, error) {
	out := make([]func([]float64) float64, len(es))
	for i, e := range es {
		f, err := compileFloat(e, index)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// CompileHyperdual turns e into a closure over hyperdual numbers, so a single
// evaluation seeded on two coordinates yields a value, two first partials and
// the mixed second partial.
func CompileHyperdual(e Expr, vars []string) (func(x []hyperdual.Number) hyperdual.Number, error) {
	return compileDual(e, indexOf(vars))
}

type dualFn = func([]hyperdual.Number) hyperdual.Number

func compileDual(e Expr, index map[string]int) (dualFn, error) {
	switch v := e.(type) {
	case *Num:
		c := hyperdual.Number{Real: v.Float64()}
		return func([]hyperdual.Number) hyperdual.Number { return c }, nil
	case *Const:
		c := hyperdual.Number{Real: v.value}
		return func([]hyperdual.Number) hyperdual.Number { return c }, nil
	case *Sym:
		i, ok := index[v.name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownSymbol, v.name)
		}
		return func(x []hyperdual.Number) hyperdual.Number { return x[i] }, nil
	case *Add:
		parts, err := compileDuals(v.terms, index)
		if err != nil {
			return nil, err
		}
		return func(x []hyperdual.Number) hyperdual.Number {
			var sum hyperdual.Number
			for _, p := range parts {
				sum = hyperdual.Add(sum, p(x))
			}
			return sum
		}, nil
	case *Mul:
		parts, err := compileDuals(v.factors, index)
		if err != nil {
			return nil, err
		}
		return func(x []hyperdual.Number) hyperdual.Number {
			prod := hyperdual.Number{Real: 1}
			for _, p := range parts {
				prod = hyperdual.Mul(prod, p(x))
			}
			return prod
		}, nil
	case *Pow:
		return compileDualPow(v, index)
	case *Func:
		arg, err := compileDual(v.arg, index)
		if err != nil {
			return nil, err
		}
		fn, err := dualFunc(v.name)
		if err != nil {
			return nil, err
		}
		return func(x []hyperdual.Number) hyperdual.Number { return fn(arg(x)) }, nil
	}
	return nil, fmt.Errorf("symbolic: cannot compile %T", e)
}

func compileDuals(es []Expr, index map[string]int) ([]dualFn, error) {
	out := make([]dualFn, len(es))
	for i, e := range es {
		f, err := compileDual(e, index)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// compileDualPow keeps integer powers as products so that derivatives which
// vanish identically come out as exact zeros.
func compileDualPow(p *Pow, index map[string]int) (dualFn, error) {
	base, err := compileDual(p.base, index)
	if err != nil {
		return nil, err
	}
	n, ok := p.exp.(*Num)
	if !ok {
		exp, err := compileDual(p.exp, index)
		if err != nil {
			return nil, err
		}
		return func(x []hyperdual.Number) hyperdual.Number {
			return hyperdual.Pow(base(x), exp(x))
		}, nil
	}
	if k, ok := n.Int64(); ok && abs64(k) <= 64 {
		return func(x []hyperdual.Number) hyperdual.Number {
			b := base(x)
			result := hyperdual.Number{Real: 1}
			for i := int64(0); i < abs64(k); i++ {
				result = hyperdual.Mul(result, b)
			}
			if k < 0 {
				return hyperdual.Inv(result)
			}
			return result
		}, nil
	}
	if n.Equal(F(1, 2)) {
		return func(x []hyperdual.Number) hyperdual.Number { return hyperdual.Sqrt(base(x)) }, nil
	}
	exp := n.Float64()
	return func(x []hyperdual.Number) hyperdual.Number { return hyperdual.PowReal(base(x), exp) }, nil
}

func dualFunc(name string) (func(hyperdual.Number) hyperdual.Number, error) {
	switch name {
	case "sin":
		return hyperdual.Sin, nil
	case "cos":
		return hyperdual.Cos, nil
	case "tan":
		return hyperdual.Tan, nil
	case "asin":
		return hyperdual.Asin, nil
	case "acos":
		return hyperdual.Acos, nil
	case "atan":
		return hyperdual.Atan, nil
	case "sinh":
		return hyperdual.Sinh, nil
	case "cosh":
		return hyperdual.Cosh, nil
	case "tanh":
		return hyperdual.Tanh, nil
	case "exp":
		return hyperdual.Exp, nil
	case "log":
		return hyperdual.Log, nil
	case "abs":
		return func(d hyperdual.Number) hyperdual.Number {
			return hyperdual.Scale(signum(d.Real), d)
		}, nil
	case "sign", "floor", "ceil":
		fn := unary[name]
		return func(d hyperdual.Number) hyperdual.Number {
			return hyperdual.Number{Real: fn(d.Real)}
		}, nil
	}
	return nil, fmt.Errorf("symbolic: cannot compile function %q", name)
}
