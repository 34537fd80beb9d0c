package zoom

import (
	"errors"
	"math"
)

// polyfit solves the least-squares polynomial of the given degree mapping
// xs -> ys via the normal equations. Coefficients are returned in ascending
// power order. The system is tiny (degree <= 2 in practice), so Gaussian
// elimination with partial pivoting is sufficient.
func polyfit(xs, ys []float64, degree int) ([]float64, error) {
	if degree < 0 {
		return nil, errors.New("zoom: negative polynomial degree")
	}
	n := len(xs)
	if n != len(ys) || n <= degree {
		return nil, errors.New("zoom: not enough points for polynomial degree")
	}
	m := degree + 1
	// Build A^T A and A^T y for the Vandermonde matrix A.
	ata := make([][]float64, m)
	aty := make([]float64, m)
	for i := range ata {
		ata[i] = make([]float64, m)
	}
	for k := 0; k < n; k++ {
		powers := make([]float64, 2*m-1)
		powers[0] = 1
		for p := 1; p < len(powers); p++ {
			powers[p] = powers[p-1] * xs[k]
		}
		for i := 0; i < m; i++ {
			aty[i] += powers[i] * ys[k]
			for j := 0; j < m; j++ {
				ata[i][j] += powers[i+j]
			}
		}
	}
	return solveLinear(ata, aty)
}

// solveLinear performs in-place Gaussian elimination with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	m := len(b)
	for col := 0; col < m; col++ {
		pivot := col
		for row := col + 1; row < m; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-14 {
			return nil, errors.New("zoom: singular normal equations")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]
		for row := col + 1; row < m; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < m; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}
	x := make([]float64, m)
	for row := m - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < m; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// polyval evaluates coefficients (ascending power order) at x.
func polyval(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

// polyvalDeriv evaluates the derivative of the polynomial at x.
func polyvalDeriv(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 1; i-- {
		v = v*x + float64(i)*coeffs[i]
	}
	return v
}
