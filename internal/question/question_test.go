package question

import (
	"math/rand"
	"testing"
)

func newTestGenerator() *Generator {
	return NewGenerator(rand.New(rand.NewSource(42)))
}

func TestAddRanges(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 1000; i++ {
		q := g.Next(OpAdd)
		if q.Operator != OpAdd {
			t.Fatalf("expected add operator, got %q", q.Operator)
		}
		if q.Left < 0 || q.Left > AddMax || q.Right < 0 || q.Right > AddMax {
			t.Fatalf("add operands out of range: %d, %d", q.Left, q.Right)
		}
		if q.Answer() != q.Left+q.Right {
			t.Fatalf("wrong answer for %s: got %d", q.Prompt(), q.Answer())
		}
	}
}

func TestSubtractNeverNegative(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 1000; i++ {
		q := g.Next(OpSubtract)
		if q.Right > q.Left {
			t.Fatalf("subtraction would go negative: %d - %d", q.Left, q.Right)
		}
		if q.Answer() < 0 {
			t.Fatalf("negative answer for %s", q.Prompt())
		}
	}
}

func TestMultiplyRanges(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 1000; i++ {
		q := g.Next(OpMultiply)
		if q.Left < 0 || q.Left > MultiplyMax || q.Right < 0 || q.Right > MultiplyMax {
			t.Fatalf("multiply operands out of range: %d, %d", q.Left, q.Right)
		}
	}
}

func TestModuloDivisorNeverZero(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 1000; i++ {
		q := g.Next(OpModulo)
		if q.Right < 1 || q.Right > ModuloDivisorMax {
			t.Fatalf("modulo divisor out of range: %d", q.Right)
		}
		if q.Left < 0 || q.Left > ModuloLeft {
			t.Fatalf("modulo left operand out of range: %d", q.Left)
		}
		if q.Answer() != q.Left%q.Right {
			t.Fatalf("wrong answer for %s: got %d", q.Prompt(), q.Answer())
		}
	}
}

func TestMixedResolvesToConcreteOperator(t *testing.T) {
	g := newTestGenerator()
	seen := map[Operator]bool{}
	for i := 0; i < 1000; i++ {
		q := g.Next(OpMixed)
		if q.Operator == OpMixed {
			t.Fatal("mixed leaked onto a generated question")
		}
		seen[q.Operator] = true
	}
	for _, op := range concreteOperators {
		if !seen[op] {
			t.Errorf("mixed never produced operator %q in 1000 draws", op)
		}
	}
}

func TestSameSeedSameQuestions(t *testing.T) {
	a := NewGenerator(rand.New(rand.NewSource(7)))
	b := NewGenerator(rand.New(rand.NewSource(7)))
	for i := 0; i < 100; i++ {
		qa, qb := a.Next(OpMixed), b.Next(OpMixed)
		if qa != qb {
			t.Fatalf("generators diverged at draw %d: %+v vs %+v", i, qa, qb)
		}
	}
}

func TestParseOperator(t *testing.T) {
	if op, ok := ParseOperator("+"); !ok || op != OpAdd {
		t.Errorf("ParseOperator(+) = %q, %v", op, ok)
	}
	if op, ok := ParseOperator("mixed"); !ok || op != OpMixed {
		t.Errorf("ParseOperator(mixed) = %q, %v", op, ok)
	}
	if _, ok := ParseOperator("/"); ok {
		t.Error("ParseOperator(/) should fail")
	}
}
