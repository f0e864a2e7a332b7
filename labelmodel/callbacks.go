package labelmodel

import (
	"math"
	"time"
)

// EpochEnv is passed to every Callback after an epoch.
type EpochEnv struct {
	Epoch     int
	Loss      float64 // objective before this epoch's update
	BeginTime time.Time
	// StopTraining ends the loop after the current epoch when set.
	StopTraining bool
}

// EpochHook observes one training run after each epoch.
type EpochHook func(env *EpochEnv) error

// Callback is attached with WithCallbacks. Every training run calls Begin
// once and uses the returned hook for that run only, so state held by the
// hook never carries over between runs or between concurrent runs.
type Callback interface {
	Begin() EpochHook
}

// CallbackFunc adapts a stateless function to Callback.
type CallbackFunc func(env *EpochEnv) error

// Begin implements Callback.
func (f CallbackFunc) Begin() EpochHook { return EpochHook(f) }

type callbackFactory func() EpochHook

func (f callbackFactory) Begin() EpochHook { return f() }

// RecordLoss stores every epoch's loss in history. history is cleared when a
// run begins and then holds the latest run only; sharing it between
// concurrent Train calls is a data race.
func RecordLoss(history *[]float64) Callback {
	return callbackFactory(func() EpochHook {
		*history = (*history)[:0]
		return func(env *EpochEnv) error {
			*history = append(*history, env.Loss)
			return nil
		}
	})
}

// EarlyStopping stops training once the loss has failed to improve on the
// best value by more than minDelta for patience consecutive epochs.
func EarlyStopping(patience int, minDelta float64) Callback {
	return callbackFactory(func() EpochHook {
		best := math.Inf(1)
		noImprove := 0
		return func(env *EpochEnv) error {
			if env.Loss < best-minDelta {
				best = env.Loss
				noImprove = 0
				return nil
			}
			noImprove++
			if noImprove >= patience {
				env.StopTraining = true
			}
			return nil
		}
	})
}

// TimeLimit stops training once maxDuration has elapsed since training began.
func TimeLimit(maxDuration time.Duration) Callback {
	return CallbackFunc(func(env *EpochEnv) error {
		if time.Since(env.BeginTime) > maxDuration {
			env.StopTraining = true
		}
		return nil
	})
}

// CallbackList runs the hooks of one training run in order and remembers a
// stop request.
type CallbackList struct {
	hooks []EpochHook
	env   *EpochEnv
}

// NewCallbackList begins a run on every callback.
func NewCallbackList(callbacks ...Callback) *CallbackList {
	hooks := make([]EpochHook, len(callbacks))
	for i, cb := range callbacks {
		hooks[i] = cb.Begin()
	}
	return &CallbackList{
		hooks: hooks,
		env:   &EpochEnv{},
	}
}

// AfterEpoch runs every hook and reports whether training should stop.
// Hooks after the one that requested a stop are skipped.
func (cl *CallbackList) AfterEpoch(epoch int, loss float64, begin time.Time) (bool, error) {
	cl.env.Epoch = epoch
	cl.env.Loss = loss
	cl.env.BeginTime = begin
	for _, hook := range cl.hooks {
		if err := hook(cl.env); err != nil {
			return false, err
		}
		if cl.env.StopTraining {
			break
		}
	}
	return cl.env.StopTraining, nil
}

// ShouldStop reports whether a hook has requested a stop.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
