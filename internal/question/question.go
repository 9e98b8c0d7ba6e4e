package question

import (
	"fmt"
	"math/rand"
)

// Operator identifies an arithmetic operation.
type Operator string

const (
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "x"
	OpModulo   Operator = "%"
	// OpMixed is a generation-time selector only. A concrete Question
	// never carries it.
	OpMixed Operator = "mixed"
)

// concreteOperators are the operators Mixed draws from.
var concreteOperators = []Operator{OpAdd, OpSubtract, OpMultiply, OpModulo}

// Operand ranges. Addition and subtraction work over 0-99, multiply
// and modulo divisors over small-times-table bounds so every question
// stays mental-math sized.
const (
	AddMax           = 99
	SubtractMax      = 99
	MultiplyMax      = 12
	ModuloLeft       = 99
	ModuloDivisorMax = 12
)

// Question is an immutable prompt/answer pair.
type Question struct {
	Left     int      `json:"left"`
	Right    int      `json:"right"`
	Operator Operator `json:"operator"`
}

// Prompt renders the question text shown to the player.
func (q Question) Prompt() string {
	return fmt.Sprintf("%d %s %d = ?", q.Left, q.Operator, q.Right)
}

// Answer returns the correct result.
func (q Question) Answer() int {
	switch q.Operator {
	case OpAdd:
		return q.Left + q.Right
	case OpSubtract:
		return q.Left - q.Right
	case OpMultiply:
		return q.Left * q.Right
	case OpModulo:
		return q.Left % q.Right
	}
	// Unreachable for questions produced by a Generator.
	panic(fmt.Sprintf("question: answer requested for operator %q", q.Operator))
}

// Generator produces questions from an injected random source so
// callers (and tests) control determinism.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator backed by the given source.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Next generates a question for the requested operator. Mixed first
// draws uniformly from the four concrete operators.
//
// Ranges guarantee the core invariants: subtraction never goes
// negative (right is drawn from [0,left]) and the modulo divisor is
// never zero (drawn from [1,12]).
func (g *Generator) Next(op Operator) Question {
	if op == OpMixed {
		op = concreteOperators[g.rng.Intn(len(concreteOperators))]
	}

	switch op {
	case OpAdd:
		return Question{
			Left:     g.rng.Intn(AddMax + 1),
			Right:    g.rng.Intn(AddMax + 1),
			Operator: OpAdd,
		}
	case OpSubtract:
		left := g.rng.Intn(SubtractMax + 1)
		return Question{
			Left:     left,
			Right:    g.rng.Intn(left + 1),
			Operator: OpSubtract,
		}
	case OpMultiply:
		return Question{
			Left:     g.rng.Intn(MultiplyMax + 1),
			Right:    g.rng.Intn(MultiplyMax + 1),
			Operator: OpMultiply,
		}
	case OpModulo:
		return Question{
			Left:     g.rng.Intn(ModuloLeft + 1),
			Right:    1 + g.rng.Intn(ModuloDivisorMax),
			Operator: OpModulo,
		}
	}
	panic(fmt.Sprintf("question: unknown operator %q", op))
}

// ParseOperator maps a client-supplied operator string to an Operator.
func ParseOperator(s string) (Operator, bool) {
	switch Operator(s) {
	case OpAdd, OpSubtract, OpMultiply, OpModulo, OpMixed:
		return Operator(s), true
	}
	return "", false
}
