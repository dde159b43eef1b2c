package debounce

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 16)} }

func (r *recorder) fn(v string) {
	r.mu.Lock()
	r.calls = append(r.calls, v)
	r.mu.Unlock()
	r.ch <- v
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced call")
		return ""
	}
}

func TestBurstDeliversLastValueOnce(t *testing.T) {
	r := newRecorder()
	d := New(50*time.Millisecond, r.fn)
	defer d.Stop()

	for _, v := range []string{"a", "ab", "abc"} {
		d.Push(v)
		time.Sleep(5 * time.Millisecond)
	}
	if got := waitFor(t, r.ch); got != "abc" {
		t.Errorf("delivered %q, want abc", got)
	}

	time.Sleep(120 * time.Millisecond)
	if r.count() != 1 {
		t.Errorf("calls = %d, want 1", r.count())
	}
	if d.Pending() {
		t.Error("nothing should be pending after delivery")
	}
}

func TestSeparateBursts(t *testing.T) {
	r := newRecorder()
	d := New(20*time.Millisecond, r.fn)
	defer d.Stop()

	d.Push("first")
	if got := waitFor(t, r.ch); got != "first" {
		t.Errorf("got %q", got)
	}
	d.Push("second")
	if got := waitFor(t, r.ch); got != "second" {
		t.Errorf("got %q", got)
	}
}

func TestFlush(t *testing.T) {
	r := newRecorder()
	d := New(time.Hour, r.fn)
	defer d.Stop()

	d.Push("now")
	if !d.Pending() {
		t.Fatal("value should be pending")
	}
	d.Flush()
	if r.count() != 1 || <-r.ch != "now" {
		t.Errorf("Flush did not deliver synchronously")
	}

	d.Flush()
	if r.count() != 1 {
		t.Error("Flush with nothing pending should not call back")
	}
}

func TestStopDropsPending(t *testing.T) {
	r := newRecorder()
	d := New(30*time.Millisecond, r.fn)

	d.Push("dropped")
	d.Stop()
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	if r.count() != 0 {
		t.Errorf("calls = %d, want 0", r.count())
	}

	d.Push("after stop")
	d.Flush()
	if r.count() != 0 {
		t.Error("stopped debouncer should not deliver")
	}
}
