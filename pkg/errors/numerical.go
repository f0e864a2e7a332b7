package errors

import (
	"fmt"
	"math"
)

// CheckScalar returns a NumericalInstabilityWarning when value is NaN or Inf.
func CheckScalar(epoch int, value float64) *NumericalInstabilityWarning {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityWarning(epoch, value, "loss is not finite")
	}
	return nil
}

// CheckMatrix reports the first NaN or Inf element of m as a ValueError.
func CheckMatrix(operation string, m interface {
	Dims() (int, int)
	At(int, int) float64
}) error {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewValueError(operation, fmt.Sprintf("non-finite value %v at (%d, %d)", v, i, j))
			}
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClipGradient rescales gradient in place so its L2 norm is at most maxNorm.
// It returns the norm before clipping. A non-positive maxNorm disables clipping.
func ClipGradient(gradient []float64, maxNorm float64) float64 {
	var norm float64
	for _, g := range gradient {
		norm += g * g
	}
	norm = math.Sqrt(norm)

	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for i := range gradient {
			gradient[i] *= scale
		}
	}
	return norm
}

// StabilizeLog computes log with protection against log(0).
func StabilizeLog(value float64) float64 {
	const epsilon = 1e-10
	if value < epsilon {
		return math.Log(epsilon)
	}
	return math.Log(value)
}

// LogSumExp computes log(sum(exp(values))) in a numerically stable way.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}

	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}

	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}
