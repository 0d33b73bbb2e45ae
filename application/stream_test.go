package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/steploop/application"
)

func TestStream_SendAndClose(t *testing.T) {
	t.Parallel()

	s := application.NewStream(4)
	ctx := context.Background()
	if !s.Send(ctx, "a") || !s.Send(ctx, "b") {
		t.Fatal("Send() on open stream should succeed")
	}
	s.Close()

	if !s.Closed() {
		t.Error("Closed() = false after Close")
	}
	if s.Send(ctx, "c") {
		t.Error("Send() after Close should fail")
	}
	if s.Offer("d") {
		t.Error("Offer() after Close should fail")
	}

	items := collect(t, s.Events())
	if len(items) != 2 || items[0] != "a" || items[1] != "b" {
		t.Errorf("items = %q, want [a b]", items)
	}
}

func TestStream_CloseIdempotent(t *testing.T) {
	t.Parallel()

	s := application.NewStream(0)
	var calls int
	s.OnClose(func() { calls++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("close hook calls = %d, want 1", calls)
	}

	late := false
	s.OnClose(func() { late = true })
	s.Close()
	if late {
		t.Error("hook registered after close should not run")
	}
}

func TestStream_CloseUnblocksSend(t *testing.T) {
	t.Parallel()

	s := application.NewStream(0)
	result := make(chan bool, 1)
	go func() {
		result <- s.Send(context.Background(), "blocked")
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-result:
		if ok {
			t.Error("Send() = true, want false after close")
		}
	case <-time.After(time.Second):
		t.Fatal("Send() did not return after Close")
	}
}

func TestStream_SendRespectsContext(t *testing.T) {
	t.Parallel()

	s := application.NewStream(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if s.Send(ctx, "x") {
		t.Error("Send() = true, want false when nobody reads")
	}
}

func TestStream_OfferFull(t *testing.T) {
	t.Parallel()

	s := application.NewStream(1)
	if !s.Offer("a") {
		t.Fatal("Offer() with buffer space should succeed")
	}
	if s.Offer("b") {
		t.Error("Offer() on full buffer should fail")
	}
}
