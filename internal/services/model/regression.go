package model

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
)

// solveNormal solves the ridge-regularised normal equations
// (XᵗX + alpha*I)beta = Xᵗy over the given samples, with an unpenalised
// intercept carried as an extra coordinate. alpha == 0 is ordinary least
// squares; a near-singular system then fails with ErrComputation instead of
// returning garbage.
func solveNormal(samples []models.TrainingSample, dim int, alpha float64) (coef []float64, intercept float64, err error) {
	n := len(samples)
	if n == 0 {
		return nil, 0, fmt.Errorf("regression: %w", models.ErrEmptyInput)
	}
	d := dim + 1 // +1 intercept column

	// Accumulate XᵗX and Xᵗy directly; O(n·d²).
	xtx := make([][]float64, d)
	for i := range xtx {
		xtx[i] = make([]float64, d)
	}
	xty := make([]float64, d)

	row := make([]float64, d)
	for _, s := range samples {
		if len(s.Features) != dim {
			return nil, 0, fmt.Errorf("regression: sample dim %d, want %d: %w", len(s.Features), dim, models.ErrLengthMismatch)
		}
		copy(row, s.Features)
		row[dim] = 1 // intercept
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * s.Target
		}
	}
	for i := 1; i < d; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}
	// Ridge penalty on the feature diagonal only; the intercept stays free.
	for i := 0; i < dim; i++ {
		xtx[i][i] += alpha
	}

	beta, err := solveLinear(xtx, xty)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range beta {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, 0, fmt.Errorf("regression: non-finite solution: %w", models.ErrComputation)
		}
	}
	return beta[:dim], beta[dim], nil
}

// solveLinear performs in-place Gaussian elimination with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)

	// Scale for the singularity test: the largest diagonal magnitude.
	scale := 0.0
	for i := 0; i < n; i++ {
		if v := math.Abs(a[i][i]); v > scale {
			scale = v
		}
	}
	if scale == 0 {
		scale = 1
	}
	tol := 1e-12 * scale

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < tol {
			return nil, fmt.Errorf("regression: singular system at column %d: %w", col, models.ErrComputation)
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}
