package mathx

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	if got := Clamp(150, 0, 100); got != 100 {
		t.Fatalf("Clamp hi = %d", got)
	}
	if got := Clamp(-3.5, 0.0, 100.0); got != 0 {
		t.Fatalf("Clamp lo = %v", got)
	}
	// swapped bounds
	if got := Clamp(5, 10, 0); got != 5 {
		t.Fatalf("Clamp swapped = %d", got)
	}
	if got := Max(time.Second, 1200*time.Millisecond); got != 1200*time.Millisecond {
		t.Fatalf("Max = %v", got)
	}
}

func TestMean(t *testing.T) {
	if _, ok := Mean(nil); ok {
		t.Fatal("Mean(nil) should be absent")
	}
	if m, ok := Mean([]float64{5, 7}); !ok || m != 6 {
		t.Fatalf("Mean = %v %v", m, ok)
	}
	if r := Round(3.14159, 2); r != 3.14 {
		t.Fatalf("Round = %v", r)
	}
}
