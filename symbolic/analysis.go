package symbolic

import "sort"

// ============================================================
// Free Symbols and Renaming
// ============================================================

func FreeSymbols(e Expr) map[string]struct{} {
	result := map[string]struct{}{}
	collectSymbols(e, result)
	return result
}

// SortedSymbols returns the free symbol names in lexical order.
func SortedSymbols(e Expr) []string {
	set := FreeSymbols(e)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectSymbols(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Func:
		collectSymbols(v.arg, out)
	}
}

// Rename replaces symbols simultaneously, so {a: b, b: a} swaps them instead
// of collapsing both onto one name.
func Rename(e Expr, names map[string]string) Expr {
	return rename(e, names).Simplify()
}

func rename(e Expr, names map[string]string) Expr {
	switch v := e.(type) {
	case *Sym:
		if to, ok := names[v.name]; ok {
			return S(to)
		}
		return v
	case *Add:
		out := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			out[i] = rename(t, names)
		}
		return &Add{terms: out}
	case *Mul:
		out := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			out[i] = rename(f, names)
		}
		return &Mul{factors: out}
	case *Pow:
		return &Pow{base: rename(v.base, names), exp: rename(v.exp, names)}
	case *Func:
		return &Func{name: v.name, arg: rename(v.arg, names)}
	}
	return e
}

// SubAll substitutes a value for every listed variable.
func SubAll(e Expr, values map[string]Expr) Expr {
	for name, value := range values {
		e = e.Sub(name, value)
	}
	return e.Simplify()
}

// EvalAt evaluates e exactly at a numeric point. ok is false when a variable
// is missing or the result is not finite.
func EvalAt(e Expr, varNames []string, point []float64) (float64, bool) {
	values := make(map[string]Expr, len(varNames))
	for i, name := range varNames {
		n, ok := numFromFloat(point[i])
		if !ok {
			return 0, false
		}
		values[name] = n
	}
	n, ok := SubAll(e, values).Eval()
	if !ok {
		return 0, false
	}
	return n.Float64(), true
}

// ============================================================
// Operation count
// ============================================================

// CountOps counts operator nodes: n-1 for an n-ary sum or product, one per
// power (a negated or reciprocal factor counts as its own operator) and one
// per function application.
func CountOps(e Expr) int {
	switch v := e.(type) {
	case *Num:
		if v.IsNegative() || !v.IsInteger() {
			return 1
		}
		return 0
	case *Add:
		n := len(v.terms) - 1
		for _, t := range v.terms {
			n += CountOps(t)
		}
		return n
	case *Mul:
		n := len(v.factors) - 1
		for i, f := range v.factors {
			if c, ok := f.(*Num); ok && i == 0 && c.IsNegOne() {
				// -x is a single NEG, not MUL plus a negative literal
				continue
			}
			n += CountOps(f)
		}
		return n
	case *Pow:
		return 1 + CountOps(v.base) + CountOps(v.exp)
	case *Func:
		return 1 + CountOps(v.arg)
	}
	return 0
}

// ============================================================
// Expansion and Polynomial utilities
// ============================================================

func Expand(e Expr) Expr { return expandExpr(e.Simplify()).Simplify() }

func expandExpr(e Expr) Expr {
	switch v := e.(type) {
	case *Mul:
		expanded := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			expanded[i] = expandExpr(f)
		}
		for i, f := range expanded {
			a, ok := f.(*Add)
			if !ok {
				continue
			}
			rest := make([]Expr, 0, len(expanded)-1)
			for j, ef := range expanded {
				if j != i {
					rest = append(rest, ef)
				}
			}
			terms := make([]Expr, len(a.terms))
			for k, t := range a.terms {
				terms[k] = expandExpr(MulOf(append([]Expr{t}, rest...)...))
			}
			return AddOf(terms...)
		}
		return MulOf(expanded...)
	case *Add:
		terms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			terms[i] = expandExpr(t)
		}
		return AddOf(terms...)
	case *Pow:
		if n, ok := v.exp.(*Num); ok {
			if k, ok := n.Int64(); ok && k >= 2 && k <= 10 {
				base := expandExpr(v.base)
				if _, isAdd := base.(*Add); isAdd {
					result := base
					for i := int64(1); i < k; i++ {
						result = distribute(result, base)
					}
					return result
				}
				return PowOf(base, n)
			}
		}
		return PowOf(expandExpr(v.base), expandExpr(v.exp))
	case *Func:
		return funcOf(v.name, expandExpr(v.arg)).Simplify()
	}
	return e
}

// distribute multiplies two expanded sums term by term. Going through MulOf
// would fold (a+b)*(a+b) back into (a+b)^2.
func distribute(a, b Expr) Expr {
	left, right := []Expr{a}, []Expr{b}
	if s, ok := a.(*Add); ok {
		left = s.terms
	}
	if s, ok := b.(*Add); ok {
		right = s.terms
	}
	terms := make([]Expr, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			terms = append(terms, expandExpr(MulOf(l, r)))
		}
	}
	return AddOf(terms...)
}

// Degree returns the degree of a polynomial term in varName; non-polynomial
// dependence reports -1.
func Degree(expr Expr, varName string) int {
	switch v := expr.Simplify().(type) {
	case *Num, *Const:
		return 0
	case *Sym:
		if v.name == varName {
			return 1
		}
		return 0
	case *Pow:
		if _, depends := FreeSymbols(v)[varName]; !depends {
			return 0
		}
		sym, ok := v.base.(*Sym)
		n, isNum := v.exp.(*Num)
		if ok && isNum && sym.name == varName {
			if k, ok := n.Int64(); ok && k >= 0 {
				return int(k)
			}
		}
		return -1
	case *Add:
		maxDeg := 0
		for _, t := range v.terms {
			d := Degree(t, varName)
			if d < 0 {
				return -1
			}
			if d > maxDeg {
				maxDeg = d
			}
		}
		return maxDeg
	case *Mul:
		total := 0
		for _, f := range v.factors {
			d := Degree(f, varName)
			if d < 0 {
				return -1
			}
			total += d
		}
		return total
	case *Func:
		if _, depends := FreeSymbols(v)[varName]; depends {
			return -1
		}
		return 0
	}
	return -1
}

// IsPolynomial reports whether e is a polynomial in every listed variable.
func IsPolynomial(e Expr, varNames []string) bool {
	for _, name := range varNames {
		if Degree(Expand(e), name) < 0 {
			return false
		}
	}
	return true
}

type PolyCoeffsResult map[int]Expr

// PolyCoeffs groups the expanded expression by powers of varName.
func PolyCoeffs(expr Expr, varName string) PolyCoeffsResult {
	result := PolyCoeffsResult{}
	expanded := Expand(expr)
	terms := []Expr{expanded}
	if a, ok := expanded.(*Add); ok {
		terms = a.terms
	}
	for _, t := range terms {
		deg, coeff := splitPower(t, varName)
		if existing, ok := result[deg]; ok {
			result[deg] = AddOf(existing, coeff)
		} else {
			result[deg] = coeff
		}
	}
	return result
}

func splitPower(t Expr, varName string) (int, Expr) {
	factors := []Expr{t}
	if m, ok := t.(*Mul); ok {
		factors = m.factors
	}
	deg := 0
	coeff := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if d := Degree(f, varName); d > 0 {
			deg += d
		} else {
			coeff = append(coeff, f)
		}
	}
	return deg, MulOf(coeff...)
}
