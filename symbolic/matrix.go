package symbolic

import (
	"fmt"
	"strings"
)

// ============================================================
// Matrix: symbolic matrix
// ============================================================

type Matrix struct {
	rows, cols int
	data       [][]Expr
}

func NewMatrix(rows, cols int) *Matrix {
	data := make([][]Expr, rows)
	for i := range data {
		data[i] = make([]Expr, cols)
		for j := range data[i] {
			data[i][j] = N(0)
		}
	}
	return &Matrix{rows: rows, cols: cols, data: data}
}

func (m *Matrix) checkBounds(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("symbolic: matrix index out of range [%d,%d] for %dx%d", row, col, m.rows, m.cols))
	}
}

func (m *Matrix) Get(row, col int) Expr {
	m.checkBounds(row, col)
	return m.data[row][col]
}

func (m *Matrix) Set(row, col int, val Expr) {
	m.checkBounds(row, col)
	m.data[row][col] = val
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("[")
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.data[i][j].String())
		}
		sb.WriteString("]")
	}
	sb.WriteString("]")
	return sb.String()
}

// Det expands the determinant along the first row.
func (m *Matrix) Det() Expr {
	if m.rows != m.cols {
		panic("symbolic: Det requires a square matrix")
	}
	if m.rows == 0 {
		return N(1)
	}
	return matDet(m.data, m.rows)
}

func matDet(data [][]Expr, n int) Expr {
	switch n {
	case 1:
		return data[0][0].Simplify()
	case 2:
		return SubOf(MulOf(data[0][0], data[1][1]), MulOf(data[0][1], data[1][0]))
	}
	terms := make([]Expr, 0, n)
	for j := 0; j < n; j++ {
		if isNumEqual(data[0][j], 0) {
			continue
		}
		sign := N(1)
		if j%2 == 1 {
			sign = N(-1)
		}
		terms = append(terms, MulOf(sign, data[0][j], matDet(makeMinor(data, n, 0, j), n-1)))
	}
	return AddOf(terms...)
}

func makeMinor(data [][]Expr, n, skipRow, skipCol int) [][]Expr {
	minor := make([][]Expr, 0, n-1)
	for i := 0; i < n; i++ {
		if i == skipRow {
			continue
		}
		row := make([]Expr, 0, n-1)
		for j := 0; j < n; j++ {
			if j != skipCol {
				row = append(row, data[i][j])
			}
		}
		minor = append(minor, row)
	}
	return minor
}

// ApplySub substitutes value for varName in every entry.
func (m *Matrix) ApplySub(varName string, value Expr) *Matrix {
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = Sub(m.data[i][j], varName, value)
		}
	}
	return result
}

// ============================================================
// Partial Derivatives
// ============================================================

// Gradient returns the first partial derivative with respect to each name.
func Gradient(expr Expr, varNames []string) []Expr {
	result := make([]Expr, len(varNames))
	for i, v := range varNames {
		result[i] = Diff(expr, v)
	}
	return result
}

// Hessian returns the n×n matrix of second partial derivatives, entry (i,j)
// being ∂/∂xj ∂/∂xi.
func Hessian(expr Expr, varNames []string) *Matrix {
	n := len(varNames)
	mat := NewMatrix(n, n)
	for i, first := range Gradient(expr, varNames) {
		for j, vj := range varNames {
			mat.Set(i, j, Diff(first, vj))
		}
	}
	return mat
}

// Jacobian returns the len(exprs)×len(varNames) matrix of partials.
func Jacobian(exprs []Expr, varNames []string) *Matrix {
	mat := NewMatrix(len(exprs), len(varNames))
	for i, e := range exprs {
		for j, v := range varNames {
			mat.Set(i, j, Diff(e, v))
		}
	}
	return mat
}

// ============================================================
// Top-level convenience functions
// ============================================================

func Simplify(e Expr) Expr { return e.Simplify() }
func String(e Expr) string { return e.String() }

func Sub(expr Expr, varName string, value Expr) Expr {
	return expr.Sub(varName, value).Simplify()
}

func Diff(expr Expr, varName string) Expr {
	return expr.Diff(varName).Simplify()
}
