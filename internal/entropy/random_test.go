package entropy

import "testing"

func TestSeededIsDeterministic(t *testing.T) {
	a := NewSeeded(7)
	b := NewSeeded(7)
	for i := 0; i < 20; i++ {
		if x, y := a.Intn(100), b.Intn(100); x != y {
			t.Fatalf("expected identical sequences, draw %d: %d vs %d", i, x, y)
		}
	}
}

func TestCryptoRanges(t *testing.T) {
	var c Crypto
	for i := 0; i < 100; i++ {
		f := c.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("expected float in [0,1), got %f", f)
		}
		n := c.Intn(3)
		if n < 0 || n >= 3 {
			t.Fatalf("expected int in [0,3), got %d", n)
		}
	}
}

func TestFromSeedZeroUsesCrypto(t *testing.T) {
	if _, ok := FromSeed(0).(Crypto); !ok {
		t.Fatalf("expected crypto source for zero seed")
	}
	if _, ok := FromSeed(3).(*Seeded); !ok {
		t.Fatalf("expected seeded source for non-zero seed")
	}
}
