package pio

import "testing"

func TestAllocatePIORoundRobin(t *testing.T) {
	ResetPIOAllocations()
	defer ResetPIOAllocations()

	seen := make(map[[2]uint8]bool)
	for i := 0; i < 8; i++ {
		p, sm, ok := allocatePIO()
		if !ok {
			t.Fatalf("Allocation %d failed", i)
		}
		key := [2]uint8{p, sm}
		if seen[key] {
			t.Fatalf("PIO%d SM%d allocated twice", p, sm)
		}
		seen[key] = true
	}

	if _, _, ok := allocatePIO(); ok {
		t.Error("Expected exhaustion after 8 allocations")
	}

	releasePIO(1, 2)
	p, sm, ok := allocatePIO()
	if !ok || p != 1 || sm != 2 {
		t.Errorf("Reallocated PIO%d SM%d ok=%v, want PIO1 SM2", p, sm, ok)
	}
}

func TestSamplePhase(t *testing.T) {
	testCases := []struct {
		word  uint32
		phase uint8
	}{
		{0b00, 0},
		{0b01, 2}, // A high
		{0b10, 1}, // B high
		{0b11, 3},
		{0xFFFFFFFC, 0},
	}
	for _, tc := range testCases {
		if got := SamplePhase(tc.word); got != tc.phase {
			t.Errorf("SamplePhase(%#b) = %d, want %d", tc.word, got, tc.phase)
		}
	}
}
