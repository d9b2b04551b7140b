package symbolic

import "math"

// ============================================================
// Func: named function applications
// ============================================================

type Func struct {
	name string
	arg  Expr
}

// unary holds the float64 kernel of every supported function.
var unary = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"exp":   math.Exp,
	"log":   math.Log,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"sign":  signum,
}

func funcOf(name string, arg Expr) *Func { return &Func{name: name, arg: arg} }

func SinOf(arg Expr) Expr  { return funcOf("sin", arg).Simplify() }
func CosOf(arg Expr) Expr  { return funcOf("cos", arg).Simplify() }
func TanOf(arg Expr) Expr  { return funcOf("tan", arg).Simplify() }
func AsinOf(arg Expr) Expr { return funcOf("asin", arg).Simplify() }
func AcosOf(arg Expr) Expr { return funcOf("acos", arg).Simplify() }
func AtanOf(arg Expr) Expr { return funcOf("atan", arg).Simplify() }
func SinhOf(arg Expr) Expr { return funcOf("sinh", arg).Simplify() }
func CoshOf(arg Expr) Expr { return funcOf("cosh", arg).Simplify() }
func TanhOf(arg Expr) Expr { return funcOf("tanh", arg).Simplify() }
func ExpOf(arg Expr) Expr  { return funcOf("exp", arg).Simplify() }
func LnOf(arg Expr) Expr   { return funcOf("log", arg).Simplify() }
func AbsOf(arg Expr) Expr  { return funcOf("abs", arg).Simplify() }
func SignOf(arg Expr) Expr { return funcOf("sign", arg).Simplify() }

// FuncOf applies a named function. ok is false for unknown names.
func FuncOf(name string, arg Expr) (Expr, bool) {
	if _, known := unary[name]; !known {
		return nil, false
	}
	return funcOf(name, arg).Simplify(), true
}

func (f *Func) Simplify() Expr {
	arg := f.arg.Simplify()
	if n, ok := arg.(*Num); ok {
		if folded, ok := foldFunc(f.name, n); ok {
			return folded
		}
	}
	switch f.name {
	case "sin", "tan", "asin", "atan", "sinh", "tanh":
		if isNumEqual(arg, 0) {
			return N(0)
		}
	case "cos", "cosh":
		if isNumEqual(arg, 0) {
			return N(1)
		}
	case "log":
		if n, ok := arg.(*Num); ok && n.IsOne() {
			return N(0)
		}
		if arg.Equal(Euler) {
			return N(1)
		}
		if inner, ok := arg.(*Func); ok && inner.name == "exp" {
			return inner.arg
		}
	case "exp":
		if inner, ok := arg.(*Func); ok && inner.name == "log" {
			return inner.arg
		}
	case "abs":
		if coeff, rest := extractCoefficient(arg); coeff.IsNegative() {
			return MulOf(numNeg(coeff), AbsOf(rest))
		}
	}
	return &Func{name: f.name, arg: arg}
}

// foldFunc evaluates a function of an exact number when the result is exact
// or at least finite.
func foldFunc(name string, n *Num) (Expr, bool) {
	switch name {
	case "abs":
		if n.IsNegative() {
			return numNeg(n), true
		}
		return n, true
	case "sign":
		return N(int64(n.val.Sign())), true
	case "exp":
		if n.IsZero() {
			return N(1), true
		}
		// keep exp(1) symbolic-looking instead of a 53-bit rational
		return nil, false
	case "log":
		if n.IsOne() {
			return N(0), true
		}
		return nil, false
	}
	fn := unary[name]
	if fn == nil {
		return nil, false
	}
	v := fn(n.Float64())
	if r, ok := numFromFloat(v); ok && v == math.Trunc(v) {
		return r, true
	}
	return nil, false
}

func (f *Func) String() string { return f.name + "(" + f.arg.String() + ")" }

func (f *Func) Sub(varName string, value Expr) Expr {
	return funcOf(f.name, f.arg.Sub(varName, value)).Simplify()
}

// Diff applies the chain rule with the outer derivative of each function.
func (f *Func) Diff(varName string) Expr {
	du := f.arg.Diff(varName)
	if isNumEqual(du.Simplify(), 0) {
		return N(0)
	}
	var outer Expr
	switch f.name {
	case "sin":
		outer = CosOf(f.arg)
	case "cos":
		outer = MulOf(N(-1), SinOf(f.arg))
	case "tan":
		outer = AddOf(N(1), PowOf(TanOf(f.arg), N(2)))
	case "asin":
		outer = PowOf(SubOf(N(1), PowOf(f.arg, N(2))), F(-1, 2))
	case "acos":
		outer = MulOf(N(-1), PowOf(SubOf(N(1), PowOf(f.arg, N(2))), F(-1, 2)))
	case "atan":
		outer = PowOf(AddOf(N(1), PowOf(f.arg, N(2))), N(-1))
	case "sinh":
		outer = CoshOf(f.arg)
	case "cosh":
		outer = SinhOf(f.arg)
	case "tanh":
		outer = SubOf(N(1), PowOf(TanhOf(f.arg), N(2)))
	case "exp":
		outer = ExpOf(f.arg)
	case "log":
		outer = PowOf(f.arg, N(-1))
	case "abs":
		outer = SignOf(f.arg)
	case "sign", "floor", "ceil":
		// piecewise constant; the derivative vanishes almost everywhere
		return N(0)
	default:
		return MulOf(funcOf("D["+f.name+"]", f.arg), du)
	}
	return MulOf(outer, du)
}

func (f *Func) Eval() (*Num, bool) {
	n, ok := f.arg.Eval()
	if !ok {
		return nil, false
	}
	fn := unary[f.name]
	if fn == nil {
		return nil, false
	}
	return numFromFloat(fn(n.Float64()))
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && f.arg.Equal(o.arg)
}

func (f *Func) exprType() string { return "func" }
func (f *Func) FuncName() string { return f.name }
func (f *Func) Arg() Expr        { return f.arg }

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	case v == 0:
		return 0
	}
	return math.NaN()
}
