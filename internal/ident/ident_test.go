package ident

import (
	"testing"

	"go.uber.org/zap"
)

func testNode(t *testing.T, machineID int64) *Node {
	t.Helper()
	n, err := New(machineID, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestStrictlyIncreasing(t *testing.T) {
	n := testNode(t, 1)

	prev := n.Generate()
	for i := 0; i < 5000; i++ {
		id := n.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d (iteration %d)", id, prev, i)
		}
		prev = id
	}
}

func TestAllDistinct(t *testing.T) {
	n := testNode(t, 2)

	seen := make(map[int64]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id := n.Generate()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d at iteration %d", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestMachineIDEmbedded(t *testing.T) {
	n := testNode(t, 555)
	id := n.Generate()
	if got := (id >> 12) & 0x3FF; got != 555 {
		t.Errorf("machine id field = %d, want 555", got)
	}
}

func TestOutOfRangeMachineIDFallsBack(t *testing.T) {
	// -1 is the config default meaning "pick one".
	n := testNode(t, -1)
	if n.Generate() == 0 {
		t.Error("expected nonzero id")
	}
}
