package testutil

import (
	"runtime"
	"testing"
	"time"
)

// GoroutineBaseline records the current goroutine count. Call the returned
// function at the end of a test to check that everything started since has
// exited.
func GoroutineBaseline(t testing.TB, margin int) func() {
	t.Helper()
	baseline := runtime.NumGoroutine()
	return func() {
		t.Helper()
		AssertNoGoroutineLeaks(t, baseline, margin)
	}
}

// AssertNoGoroutineLeaks waits for the goroutine count to fall back to
// baseline+margin.
func AssertNoGoroutineLeaks(t testing.TB, baseline, margin int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+margin {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("goroutine leak: baseline=%d current=%d margin=%d\n%s",
		baseline, runtime.NumGoroutine(), margin, buf[:n])
}
