package taskgraph

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
)

// FeasibleSet is the ordered list of feasible label vectors of a TaskGraph.
// Vectors are in lexicographic order with task 0 most significant, so the
// dense index of a vector is stable across calls and processes. A
// FeasibleSet is immutable and safe for concurrent use.
type FeasibleSet struct {
	cards  []int
	arena  []int // Len() rows of NumTasks() labels
	lookup map[int]int
}

// Enumerate walks the cardinality product space depth first with an
// explicit cursor per task, pruning a partial assignment as soon as a
// constraint whose tasks are all assigned fails.
func Enumerate(g *TaskGraph) (*FeasibleSet, error) {
	start := time.Now()
	t := g.NumTasks()

	product := 1
	for i, k := range g.cards {
		if product > math.MaxInt/k {
			return nil, errors.NewConfigurationError(i,
				fmt.Sprintf("label product space overflows int at task %d", i))
		}
		product *= k
	}

	decidable := make([][]Constraint, t)
	for _, c := range g.constraints {
		d := maxTask(c)
		decidable[d] = append(decidable[d], c)
	}

	fs := &FeasibleSet{
		cards:  append([]int(nil), g.cards...),
		lookup: make(map[int]int),
	}
	cursor := make(Vector, t)
	sub := make([]int, t)

	depth := 0
	for depth >= 0 {
		cursor[depth]++
		if cursor[depth] > g.cards[depth] {
			cursor[depth] = 0
			depth--
			continue
		}
		if !satisfiesAll(decidable[depth], cursor) {
			continue
		}
		if depth < t-1 {
			depth++
			continue
		}
		for i, y := range cursor {
			sub[i] = y - 1
		}
		fs.lookup[combin.IdxFor(sub, fs.cards)] = fs.Len()
		fs.arena = append(fs.arena, cursor...)
	}

	log.GetLoggerWithName("taskgraph").Debug("feasible set enumerated",
		log.TasksKey, t,
		log.FeasibleVectorsKey, fs.Len(),
		"product_size", product,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return fs, nil
}

func satisfiesAll(cs []Constraint, v Vector) bool {
	for _, c := range cs {
		if !c.Satisfied(v) {
			return false
		}
	}
	return true
}

// Len returns the number of feasible vectors.
func (fs *FeasibleSet) Len() int { return len(fs.arena) / len(fs.cards) }

// NumTasks returns the length of every vector.
func (fs *FeasibleSet) NumTasks() int { return len(fs.cards) }

// Cardinalities returns a copy of the task cardinalities.
func (fs *FeasibleSet) Cardinalities() []int { return append([]int(nil), fs.cards...) }

// Vector returns a copy of the i-th feasible vector.
func (fs *FeasibleSet) Vector(i int) Vector {
	t := len(fs.cards)
	return append(Vector(nil), fs.arena[i*t:(i+1)*t]...)
}

// Label returns the label of task t in the i-th feasible vector.
func (fs *FeasibleSet) Label(i, t int) int { return fs.arena[i*len(fs.cards)+t] }

// Index returns the dense index of v, or false when v is not feasible.
func (fs *FeasibleSet) Index(v Vector) (int, bool) {
	if len(v) != len(fs.cards) {
		return 0, false
	}
	sub := make([]int, len(v))
	for t, y := range v {
		if y < 1 || y > fs.cards[t] {
			return 0, false
		}
		sub[t] = y - 1
	}
	i, ok := fs.lookup[combin.IdxFor(sub, fs.cards)]
	return i, ok
}

// Vectors returns copies of all feasible vectors in order.
func (fs *FeasibleSet) Vectors() []Vector {
	out := make([]Vector, fs.Len())
	for i := range out {
		out[i] = fs.Vector(i)
	}
	return out
}

// WithLabel returns the indices of the feasible vectors whose task t label
// equals y.
func (fs *FeasibleSet) WithLabel(t, y int) []int {
	var idx []int
	for i := 0; i < fs.Len(); i++ {
		if fs.Label(i, t) == y {
			idx = append(idx, i)
		}
	}
	return idx
}
