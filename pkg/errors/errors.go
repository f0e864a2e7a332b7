// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// タスクグラフの設定エラー、ラベル行列の形状エラー、未学習モデルへのアクセスなど、
// 弱教師ありラベルモデルで発生するエラーを構造化して表現します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("weaksup-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します。nilを渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// NumericalInstabilityWarning は学習中の損失が発散・停滞・非有限値になった場合の警告です。
// 学習は中断されず、損失の推移とともに呼び出し側へ報告されます。
type NumericalInstabilityWarning struct {
	Epoch  int
	Loss   float64
	Reason string
}

func (w *NumericalInstabilityWarning) Error() string {
	return fmt.Sprintf("numerical instability at epoch %d (loss=%.6g): %s", w.Epoch, w.Loss, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *NumericalInstabilityWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("epoch", w.Epoch).
		Float64("loss", w.Loss).
		Str("reason", w.Reason).
		Str("type", "NumericalInstabilityWarning")
}

// NewNumericalInstabilityWarning は新しいNumericalInstabilityWarningを作成します。
func NewNumericalInstabilityWarning(epoch int, loss float64, reason string) *NumericalInstabilityWarning {
	return &NumericalInstabilityWarning{Epoch: epoch, Loss: loss, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、あるタスクの正解ラベルがすべて0（未ラベル）だった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ConfigurationError はタスクグラフの定義が不正な場合のエラーです。
// 循環、不正なカーディナリティ、範囲外のエッジ参照などを表します。
// 該当しないフィールドは -1 です。
type ConfigurationError struct {
	Task   int
	Parent int
	Child  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Parent >= 0 || e.Child >= 0:
		return fmt.Sprintf("weaksup: invalid task graph: edge (%d -> %d): %s", e.Parent, e.Child, e.Reason)
	case e.Task >= 0:
		return fmt.Sprintf("weaksup: invalid task graph: task %d: %s", e.Task, e.Reason)
	default:
		return fmt.Sprintf("weaksup: invalid task graph: %s", e.Reason)
	}
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("task", e.Task).
		Int("parent", e.Parent).
		Int("child", e.Child).
		Str("reason", e.Reason).
		Str("type", "ConfigurationError")
}

// NewConfigurationError はタスク単位のConfigurationErrorを作成します。taskが-1の場合はグラフ全体の問題です。
func NewConfigurationError(task int, reason string) error {
	return errors.WithStack(&ConfigurationError{Task: task, Parent: -1, Child: -1, Reason: reason})
}

// NewEdgeConfigurationError はエッジ単位のConfigurationErrorを作成します。
func NewEdgeConfigurationError(parent, child int, reason string) error {
	return errors.WithStack(&ConfigurationError{Task: -1, Parent: parent, Child: child, Reason: reason})
}

// ShapeMismatchError はラベル行列の形状や値がタスクグラフと整合しない場合のエラーです。
// Dimension は "tasks", "rows", "labeling functions", "label value" などです。
type ShapeMismatchError struct {
	Op        string
	Task      int // -1 はタスク全体
	Dimension string
	Expected  int
	Got       int
	Detail    string
}

func (e *ShapeMismatchError) Error() string {
	where := ""
	if e.Task >= 0 {
		where = fmt.Sprintf("task %d: ", e.Task)
	}
	msg := fmt.Sprintf("weaksup: %s: %s%s mismatch: expected %d, got %d", e.Op, where, e.Dimension, e.Expected, e.Got)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("task", e.Task).
		Str("dimension", e.Dimension).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("detail", e.Detail).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError は新しいShapeMismatchErrorを作成し、スタックトレースを付与します。
func NewShapeMismatchError(op string, task int, dimension string, expected, got int) error {
	return errors.WithStack(&ShapeMismatchError{Op: op, Task: task, Dimension: dimension, Expected: expected, Got: got})
}

// NewShapeMismatchErrorf は詳細メッセージ付きのShapeMismatchErrorを作成します。
func NewShapeMismatchErrorf(op string, task int, dimension string, expected, got int, format string, args ...interface{}) error {
	return errors.WithStack(&ShapeMismatchError{
		Op: op, Task: task, Dimension: dimension, Expected: expected, Got: got,
		Detail: fmt.Sprintf(format, args...),
	})
}

// NotFittedError はモデルが未学習の状態で `PredictProba` や `Score` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("weaksup: %s: this model is not trained yet. Call Train() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError はベクトルの長さが期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("weaksup: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError はオプションや設定値の検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("weaksup: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("weaksup: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
