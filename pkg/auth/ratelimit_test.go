package auth

import (
	"testing"
	"time"
)

func TestInProcessLimiterEnforcesBurst(t *testing.T) {
	s := NewInProcessLimiterStore()
	base := time.Unix(1_700_000_000, 0)

	accepted := 0
	for i := 0; i < 5; i++ {
		ok, _ := s.Allow("client-a", base.Add(time.Duration(i)*time.Millisecond), 100, 3)
		if ok {
			accepted++
		}
	}
	if accepted != 3 {
		t.Fatalf("expected exactly 3 accepts within the burst window, got %d", accepted)
	}
}

func TestInProcessLimiterEnforcesSustainedRate(t *testing.T) {
	s := NewInProcessLimiterStore()
	base := time.Unix(1_700_000_000, 0)

	accepted := 0
	for i := 0; i < 10; i++ {
		// space requests 10s apart so the burst window never triggers
		ok, _ := s.Allow("client-b", base.Add(time.Duration(i)*10*time.Second), 5, 100)
		if ok {
			accepted++
		}
	}
	if accepted != 5 {
		t.Fatalf("expected exactly 5 accepts within the sustained window, got %d", accepted)
	}
}

func TestInProcessLimiterGarbageCollectsOldTimestamps(t *testing.T) {
	s := NewInProcessLimiterStore()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		s.Allow("client-c", base, 3, 3)
	}
	ok, _ := s.Allow("client-c", base, 3, 3)
	if ok {
		t.Fatal("expected the 4th immediate request to be rejected")
	}

	later := base.Add(sustainedWindow + time.Second)
	ok, _ = s.Allow("client-c", later, 3, 3)
	if !ok {
		t.Fatal("expected a request after the sustained window to be accepted once old entries are GC'd")
	}
}
