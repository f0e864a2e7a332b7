// Package weaksup is a weak-supervision library for Go that combines the
// noisy votes of many labeling functions into probabilistic training labels
// for hierarchical multi-task problems.
//
// Tasks are related by a task graph: a child task only applies when its
// parent takes an activating label, and every task reserves its last label
// as "not applicable". The label model estimates each labeling function's
// accuracies from the agreement structure of its votes alone, without gold
// labels, and returns a distribution over the feasible label vectors for
// every example.
//
// # Installation
//
//	go get github.com/YuminosukeSato/weaksup
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/weaksup/labelmodel"
//	    "github.com/YuminosukeSato/weaksup/taskgraph"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    // Task 0 is binary; task 1 applies only when task 0 is 1.
//	    g, err := taskgraph.New([]int{2, 3}, []taskgraph.Edge{{Parent: 0, Child: 1}})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // One matrix per task: rows are examples, columns labeling
//	    // functions, 0 abstains and 1..K are labels.
//	    L := []mat.Matrix{
//	        mat.NewDense(3, 2, []float64{1, 1, 2, 2, 1, 0}),
//	        mat.NewDense(3, 2, []float64{1, 1, 3, 3, 2, 0}),
//	    }
//
//	    lm, err := labelmodel.New(g, labelmodel.WithSeed(1))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := lm.Train(L); err != nil {
//	        log.Fatal(err)
//	    }
//	    proba, err := lm.PredictProba(L)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(mat.Formatted(proba))
//	}
//
// # Packages
//
//   - taskgraph: task hierarchy, activation constraints and feasible label vectors
//   - labelmodel: the label model (training, prediction, scoring, persistence)
//   - sparse: CSR storage for label matrices
//   - analysis: per-labeling-function coverage, overlap and conflict statistics
//   - synthetic: seeded generator of labeling-function votes for experiments
//   - metrics: masked accuracy and squared-error metrics
//   - config: YAML configuration of task graphs and training runs
//   - core/model: shared interfaces, fitted-state tracking and weight export
//   - core/parallel: chunked parallel helpers
//   - pkg/errors, pkg/log: structured errors, warnings and zerolog logging
//
// # License
//
// weaksup is released under the MIT License.
package weaksup
