package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     *mat.VecDense
		yPred     *mat.VecDense
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "simple case",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:      0.25, // ((0.5)^2 + (0.5)^2 + (-0.5)^2 + (-0.5)^2) / 4
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1, 2, 3}),
			yPred:   mat.NewVecDense(2, []float64{1, 2}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("MSE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaskedMSE(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{1, 0, 0, 4})

	all, n, err := MaskedMSE(a, b, nil)
	if err != nil {
		t.Fatalf("MaskedMSE() error = %v", err)
	}
	if n != 4 || math.Abs(all-(4.0+9.0)/4) > 1e-12 {
		t.Errorf("MaskedMSE(nil) = %v over %d, want 3.25 over 4", all, n)
	}

	offDiag, n, err := MaskedMSE(a, b, func(i, j int) bool { return i != j })
	if err != nil {
		t.Fatalf("MaskedMSE() error = %v", err)
	}
	if n != 2 || math.Abs(offDiag-6.5) > 1e-12 {
		t.Errorf("off-diagonal MaskedMSE = %v over %d, want 6.5 over 2", offDiag, n)
	}

	none, n, err := MaskedMSE(a, b, func(i, j int) bool { return false })
	if err != nil || none != 0 || n != 0 {
		t.Errorf("empty mask = (%v, %d, %v), want (0, 0, nil)", none, n, err)
	}

	if _, _, err := MaskedMSE(a, mat.NewDense(2, 3, nil), nil); err == nil {
		t.Error("expected dimension error for column mismatch")
	}

	whole, err := MSEMatrix(a, b)
	if err != nil || whole != all {
		t.Errorf("MSEMatrix() = %v, %v; want %v", whole, err, all)
	}
}
