package labelmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/core/model"
	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// GetParams returns the default training hyperparameters.
func (lm *LabelModel) GetParams() map[string]interface{} {
	cfg := lm.baseConfig()
	params := map[string]interface{}{
		"epochs":            cfg.epochs,
		"seed":              cfg.seed,
		"log_interval":      cfg.logInterval,
		"optimizer":         string(cfg.optimizer),
		"learning_rate":     cfg.learningRate,
		"momentum":          cfg.momentum,
		"l2":                cfg.l2,
		"clip_norm":         cfg.clipNorm,
		"plateau_threshold": cfg.plateau,
		"tie_break":         string(cfg.tieBreak),
	}
	if len(cfg.precInit) > 0 {
		params["prec_init"] = cfg.precInit
	}
	if len(cfg.classBalance) > 0 {
		params["class_balance"] = cfg.classBalance
	}
	return params
}

// SetParams updates the default training hyperparameters. Numbers may be
// given as any Go numeric type, including the float64 produced by
// encoding/json. On error nothing is changed.
func (lm *LabelModel) SetParams(params map[string]interface{}) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	cfg := lm.config.clone()
	if err := applyParams(cfg, params); err != nil {
		return err
	}
	lm.config = cfg
	return nil
}

// applyParams writes params into cfg and validates the result.
func applyParams(cfg *trainConfig, params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "epochs":
			cfg.epochs, err = intParam(key, value)
		case "seed":
			var seed int
			seed, err = intParam(key, value)
			cfg.seed = int64(seed)
		case "log_interval":
			cfg.logInterval, err = intParam(key, value)
		case "optimizer":
			var s string
			if s, err = stringParam(key, value); err == nil {
				cfg.optimizer, err = ParseOptimizer(s)
			}
		case "learning_rate":
			cfg.learningRate, err = floatParam(key, value)
		case "momentum":
			cfg.momentum, err = floatParam(key, value)
		case "l2":
			cfg.l2, err = floatParam(key, value)
		case "clip_norm":
			cfg.clipNorm, err = floatParam(key, value)
		case "plateau_threshold":
			cfg.plateau, err = floatParam(key, value)
		case "tie_break":
			var s string
			s, err = stringParam(key, value)
			cfg.tieBreak = TieBreak(s)
		case "prec_init":
			cfg.precInit, err = floatsParam(key, value)
		case "class_balance":
			cfg.classBalance, err = floatsParam(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return cfg.validate()
}

func intParam(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, errors.NewValidationError(key, "must be an integer", value)
}

func floatParam(key string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.NewValidationError(key, "must be a number", value)
}

func stringParam(key string, value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(key, "must be a string", value)
}

func floatsParam(key string, value interface{}) ([]float64, error) {
	switch v := value.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []interface{}:
		out := make([]float64, len(v))
		for i, x := range v {
			f, err := floatParam(key, x)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, errors.NewValidationError(key, "must be a list of numbers", value)
}

func coefficientChecksum(coef []float64) string {
	data, _ := json.Marshal(coef)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ExportWeights returns the learned μ and class balance together with the
// hyperparameters and a checksum of the coefficients.
func (lm *LabelModel) ExportWeights() (*model.ModelWeights, error) {
	params, err := lm.trained("ExportWeights")
	if err != nil {
		return nil, err
	}
	d, k := params.mu.Dims()
	coef := append([]float64(nil), mat.DenseCopyOf(params.mu).RawMatrix().Data...)

	edges := lm.graph.Edges()
	pairs := make([][2]int, len(edges))
	for i, e := range edges {
		pairs[i] = [2]int{e.Parent, e.Child}
	}
	metadata := map[string]interface{}{
		"cardinalities":      lm.graph.Cardinalities(),
		"edges":              pairs,
		"labeling_functions": params.m,
		"checksum":           coefficientChecksum(coef),
	}
	// encoding/json rejects NaN; a model imported without a loss has none.
	if !math.IsNaN(params.finalLoss) && !math.IsInf(params.finalLoss, 0) {
		metadata["final_loss"] = params.finalLoss
	}
	return &model.ModelWeights{
		ModelType:       modelName,
		Version:         modelVersion,
		Rows:            d,
		Cols:            k,
		Coefficients:    coef,
		Prior:           append([]float64(nil), params.p...),
		Hyperparameters: lm.GetParams(),
		Metadata:        metadata,
		IsFitted:        true,
	}, nil
}

// ImportWeights loads parameters produced by ExportWeights on a model with
// the same task graph. The imported model predicts exactly like the
// exporting one; its loss history and overlap matrix are empty.
func (lm *LabelModel) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValidationError("weights", "must not be nil", nil)
	}
	if w.ModelType != modelName {
		return errors.NewValidationError("model_type", fmt.Sprintf("expected %s", modelName), w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if !w.IsFitted {
		return errors.NewValidationError("is_fitted", "weights of an untrained model cannot be imported", false)
	}
	k := lm.fs.Len()
	if w.Cols != k {
		return errors.NewShapeMismatchErrorf("ImportWeights", -1, "feasible vectors", k, w.Cols,
			"weights were exported for a different task graph")
	}
	if w.Rows%k != 0 {
		return errors.NewShapeMismatchError("ImportWeights", -1, "rows", (w.Rows/k+1)*k, w.Rows)
	}
	if sum, ok := w.Metadata["checksum"].(string); ok && sum != coefficientChecksum(w.Coefficients) {
		return errors.NewValidationError("checksum", "coefficients do not match the checksum", sum)
	}
	cfg := lm.baseConfig()
	if err := applyParams(cfg, w.Hyperparameters); err != nil {
		return err
	}

	p := append([]float64(nil), w.Prior...)
	if len(p) == 0 {
		p = uniformClassBalance(k)
	}
	if err := validateClassBalance(p, k); err != nil {
		return err
	}

	mu := mat.NewDense(w.Rows, w.Cols, append([]float64(nil), w.Coefficients...))
	m := w.Rows / k
	params := newFitted(mu, p, m, cfg)
	params.finalLoss = math.NaN()
	if v, ok := w.Metadata["final_loss"].(float64); ok {
		params.finalLoss = v
	}

	lm.mu.Lock()
	lm.config = cfg
	lm.params = params
	lm.mu.Unlock()
	lm.state.SetDimensions(0, m, lm.graph.NumTasks())
	lm.state.SetFitted()
	return nil
}
