// Package model provides the fitted-state bookkeeping, façade interfaces and
// exportable weights shared by weaksup estimators.
package model

import (
	"sync"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// StateManager tracks whether a model has been trained, together with the
// data dimensions seen during the last training call. It is composed into
// estimators instead of an embedded base type.
type StateManager struct {
	mu sync.RWMutex

	fitted             bool
	nSamples           int
	nLabelingFunctions int
	nTasks             int
}

// NewStateManager creates a StateManager in the untrained state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been trained.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as trained.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// SetDimensions records the shape of the training data.
func (s *StateManager) SetDimensions(nSamples, nLabelingFunctions, nTasks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nSamples = nSamples
	s.nLabelingFunctions = nLabelingFunctions
	s.nTasks = nTasks
}

// GetDimensions returns the shape recorded by SetDimensions.
func (s *StateManager) GetDimensions() (nSamples, nLabelingFunctions, nTasks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nSamples, s.nLabelingFunctions, s.nTasks
}

// RequireFitted returns a NotFittedError naming modelName and method when the
// model has not been trained.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}
