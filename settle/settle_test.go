package settle

import (
	"context"
	"testing"
	"time"
)

func fastTiming() Timing {
	return Timing{
		QuietWindow:   20 * time.Millisecond,
		SweepInterval: 20 * time.Millisecond,
		StallAge:      80 * time.Millisecond,
	}
}

func TestWait_ResolvesWhenAlreadyQuiet(t *testing.T) {
	d := New(nil, fastTiming())

	start := time.Now()
	d.Wait(context.Background(), time.Second)
	elapsed := time.Since(start)

	if elapsed < 15*time.Millisecond {
		t.Errorf("resolved before quiet window: %v", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("took too long for an idle page: %v", elapsed)
	}
}

func TestWait_NewRequestRestartsQuietWindow(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("r1", "https://example.com/app.js", "Script", "")

	done := make(chan time.Duration, 1)
	start := time.Now()
	go func() {
		d.Wait(context.Background(), time.Second)
		done <- time.Since(start)
	}()

	time.Sleep(30 * time.Millisecond)
	d.onDone("r1")

	elapsed := <-done
	// Quiet window starts at completion, not at Wait entry.
	if elapsed < 45*time.Millisecond {
		t.Errorf("resolved too early: %v", elapsed)
	}
}

func TestWait_IgnoresStreamingRequests(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("ws1", "wss://example.com/live", "WebSocket", "")
	d.onRequest("es1", "https://example.com/events", "EventSource", "")

	start := time.Now()
	d.Wait(context.Background(), time.Second)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("streaming requests blocked settle: %v", elapsed)
	}
}

func TestWait_HardDeadline(t *testing.T) {
	d := New(nil, Timing{
		QuietWindow:   20 * time.Millisecond,
		SweepInterval: 10 * time.Second, // effectively disable the sweep
		StallAge:      10 * time.Second,
	})
	d.onRequest("stuck", "https://example.com/slow", "Fetch", "")

	start := time.Now()
	d.Wait(context.Background(), 60*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed < 55*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("deadline resolution out of bounds: %v", elapsed)
	}
}

func TestWait_StallSweepUnblocks(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("stuck", "https://example.com/hang", "XHR", "")

	start := time.Now()
	d.Wait(context.Background(), 2*time.Second)
	elapsed := time.Since(start)

	// Stall age 80ms + sweep tick + quiet window; must beat the deadline.
	if elapsed >= 2*time.Second {
		t.Errorf("sweep did not unblock: %v", elapsed)
	}
	if d.inflightCount() != 0 {
		t.Errorf("stalled request still tracked")
	}
}

func TestWait_FrameStoppedLoadingCompletesDocument(t *testing.T) {
	d := New(nil, Timing{
		QuietWindow:   20 * time.Millisecond,
		SweepInterval: 10 * time.Second,
		StallAge:      10 * time.Second,
	})
	d.onRequest("doc1", "https://example.com/frame.html", "Document", "frame-9")

	done := make(chan struct{})
	go func() {
		d.Wait(context.Background(), 5*time.Second)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	d.onFrameStopped("frame-9")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frameStoppedLoading did not complete the document request")
	}
}

func TestWait_DataURLCompletesOnResponse(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("d1", "data:text/html,<h1>x</h1>", "Document", "")
	d.onResponse("d1", "data:text/html,<h1>x</h1>")

	if d.inflightCount() != 0 {
		t.Fatalf("data: request still in flight")
	}
}

func TestWait_RemovesWaiterRegistration(t *testing.T) {
	d := New(nil, fastTiming())
	d.Wait(context.Background(), time.Second)

	d.mu.Lock()
	n := len(d.waiters)
	d.mu.Unlock()
	if n != 0 {
		t.Fatalf("waiters still registered after resolution: %d", n)
	}
}

func TestWait_ConcurrentWaitersCoexist(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("r1", "https://example.com/a", "Fetch", "")

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			d.Wait(context.Background(), time.Second)
			done <- struct{}{}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	d.onDone("r1")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("waiter did not resolve")
		}
	}
}

func TestWait_FeedOutlivesCancelledWaiter(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("r1", "https://example.com/a", "Fetch", "")

	// A request-scoped wait dies with its context.
	reqCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Wait(reqCtx, time.Minute)
		close(done)
	}()
	cancel()
	<-done

	// The bookkeeping is page-scoped: completions arriving after that
	// context died must still drive later waits.
	elapsedCh := make(chan time.Duration, 1)
	start := time.Now()
	go func() {
		d.Wait(context.Background(), time.Second)
		elapsedCh <- time.Since(start)
	}()
	time.Sleep(30 * time.Millisecond)
	d.onDone("r1")

	elapsed := <-elapsedCh
	if elapsed < 45*time.Millisecond {
		t.Errorf("resolved before the in-flight request completed: %v", elapsed)
	}
	if d.inflightCount() != 0 {
		t.Error("completion after cancelled waiter was lost")
	}
}

func TestWait_ContextCancel(t *testing.T) {
	d := New(nil, fastTiming())
	d.onRequest("r1", "https://example.com/a", "Fetch", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Wait(ctx, time.Minute)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancelled wait did not return")
	}
}
