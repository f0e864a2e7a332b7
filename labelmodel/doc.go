// Package labelmodel learns how accurate a set of labeling functions is
// from their votes alone and combines those votes into probabilistic
// labels over the feasible label vectors of a taskgraph.TaskGraph.
//
// # Inputs
//
// Training and prediction take one label matrix per task, all n × m and
// row-aligned: entry (i, j) of matrix t is the label labeling function j
// gave example i on task t, or 0 when it abstained. Any mat.Matrix works;
// *sparse.CSR is read row by row without visiting abstentions.
//
// # Model
//
// Let k be the number of feasible label vectors. Each example's votes are
// expanded into an indicator over d = m·k columns: column j·k + a is set
// when labeling function j voted on at least one task and all of its votes
// agree with feasible vector a. The overlap matrix O is the empirical
// second moment of these indicators.
//
// The accuracy parameters μ (d × k) give, for every indicator column and
// every true feasible vector y, the probability that the column is set.
// Training fits μ so that μ diag(p) μᵀ matches O outside the
// labeling-function diagonal blocks and μp matches diag(O), where p is the
// class balance over feasible vectors:
//
//	lm, err := labelmodel.New(g, labelmodel.WithSeed(7))
//	if err != nil { ... }
//	if err := lm.Train(L, labelmodel.WithEpochs(200)); err != nil { ... }
//	proba, err := lm.PredictProba(L)
//
// PredictProba scores vector y for an example as
// log p_y + Σ log clip(μ[c, y], 0.01, 0.99) over the example's indicator
// columns c and normalises with log-sum-exp.
package labelmodel
