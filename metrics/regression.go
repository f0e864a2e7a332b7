package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MSEMatrix は任意の形状の行列同士の要素ごとのMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	mse, _, err := MaskedMSE(yTrue, yPred, nil)
	if err != nil {
		return 0, errors.Wrap(err, "MSEMatrix")
	}
	return mse, nil
}

// MaskedMSE は keep(i, j) が true の要素だけを対象にMSEを計算し、対象要素数も返す。
// keep が nil の場合は全要素が対象。対象要素が0個の場合は (0, 0, nil) を返す。
func MaskedMSE(yTrue, yPred mat.Matrix, keep func(i, j int) bool) (float64, int, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, 0, errors.NewValueError("MaskedMSE", "empty matrix")
	}
	if rTrue != rPred {
		return 0, 0, errors.NewDimensionError("MaskedMSE", rTrue, rPred, 0)
	}
	if cTrue != cPred {
		return 0, 0, errors.NewDimensionError("MaskedMSE", cTrue, cPred, 1)
	}

	var sum float64
	count := 0
	for i := 0; i < rTrue; i++ {
		for j := 0; j < cTrue; j++ {
			if keep != nil && !keep(i, j) {
				continue
			}
			diff := yTrue.At(i, j) - yPred.At(i, j)
			sum += diff * diff
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return sum / float64(count), count, nil
}
