package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	interval := 10 * time.Millisecond
	r := NewLimiter(1, interval, time.Hour)
	defer r.Stop()

	tooshort := 1 * time.Millisecond

	client := "alice"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterWithBurst(t *testing.T) {
	client := "alice"
	burst := 10

	interval := 100 * time.Millisecond
	tooshort := 10 * time.Millisecond
	shortest := 1 * time.Millisecond

	expected := []bool{true, true, true, true, true, true, true, true, true, true}
	waits := []time.Duration{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	expected = append(expected, false, true, true, false, false, false)
	waits = append(waits, interval, interval, tooshort, tooshort, shortest, shortest)

	rr := NewLimiter(burst, interval, time.Hour)
	defer rr.Stop()

	for i, exp := range expected {
		if got := rr.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterKeys(t *testing.T) {
	r := NewLimiter(1, time.Hour, time.Minute)
	defer r.Stop()

	if !r.Check("alice") || !r.Check("bob") {
		t.Fatal("first event of each key must pass")
	}
	if r.Check("alice") {
		t.Fatal("alice exceeded her bucket")
	}

	r.sweep(time.Now().Add(2 * time.Minute))

	r.mu.Lock()
	n := len(r.clients)
	r.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected idle keys to be swept, %d left", n)
	}

	if !r.Check("alice") {
		t.Fatal("swept key should start with a full bucket")
	}
}
