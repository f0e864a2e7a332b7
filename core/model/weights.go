package model

import (
	"fmt"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// ModelWeights はモデルの学習済みパラメータを表す構造体（エクスポート用）
// 保存先への書き込みは呼び出し側の責務です。
type ModelWeights struct {
	// ModelType はモデルの種類（LabelModel等）
	ModelType string `json:"model_type"`

	// Version はモデルのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Rows, Cols は係数行列の形状（LabelModelでは d × k）
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	// Coefficients は行優先で平坦化された係数行列
	Coefficients []float64 `json:"coefficients"`

	// Prior は実行可能ラベルベクトル上のクラスバランス
	Prior []float64 `json:"prior,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（学習時の統計等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if mw.Rows*mw.Cols != len(mw.Coefficients) {
		return errors.NewValidationError("coefficients",
			fmt.Sprintf("length must equal rows*cols = %d", mw.Rows*mw.Cols), len(mw.Coefficients))
	}
	if len(mw.Prior) > 0 && len(mw.Prior) != mw.Cols {
		return errors.NewValidationError("prior", fmt.Sprintf("length must equal cols = %d", mw.Cols), len(mw.Prior))
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Rows:            mw.Rows,
		Cols:            mw.Cols,
		IsFitted:        mw.IsFitted,
		Coefficients:    make([]float64, len(mw.Coefficients)),
		Prior:           make([]float64, len(mw.Prior)),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	copy(clone.Coefficients, mw.Coefficients)
	copy(clone.Prior, mw.Prior)
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
