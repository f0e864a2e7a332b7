// Package taskgraph describes the dependency structure between the tasks of
// a multi-task weak-supervision problem and enumerates the label vectors it
// allows.
//
// Every task t has a cardinality K_t and takes labels 1..K_t; label 0 is
// reserved for abstention in labeling-function output and never appears in a
// label vector. An edge (parent, child) makes the child conditional on its
// parent: the child's last label K_child is its NOT-APPLICABLE class, and the
// child may take any other label only when the parent's label activates it.
//
// Activation convention: the children of a parent, taken in the order their
// edges were given, are activated by parent labels 1, 2, ... respectively.
// For cardinalities [2, 3] and the single edge (0, 1), parent label 1
// activates task 1, so
//
//	(1, 1) (1, 2) (2, 3)   feasible
//	(1, 3) (2, 1) (2, 2)   infeasible
//
// WithActivation replaces the activating labels of one edge, and
// WithOptionalApplicability lets an activated child still be NOT-APPLICABLE.
// A task with several parents is applicable only if every parent activates
// it. A parent that is itself NOT-APPLICABLE activates nothing, so deeper
// levels follow automatically.
//
// Feasibility is checked against a constraint list built once in New and
// ordered by the topological position of the constrained task.
package taskgraph
