package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register("test", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: "test", Args: []string{"arg1"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "unknown"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("map:reload", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: "map:reload"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register("full", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(Event{Command: "full"}) // being processed
	d.Dispatch(Event{Command: "full"}) // queued
	d.Dispatch(Event{Command: "full"}) // queued

	// This should be dropped
	_, err := d.Dispatch(Event{Command: "full"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register("blocking", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Command: "blocking"})
	// Second event fills the queue
	d.Dispatch(Event{Command: "blocking"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: "blocking"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("logged", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: "logged", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("fails", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: "fails"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("join", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler("join") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("leave") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("combined", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: "combined"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_EventArgs(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("map:info", func(e Event) (any, error) {
		got = e
		return nil, nil
	})

	sender := uuid.New()
	if _, err := d.Dispatch(Event{Command: "map:info", Sender: sender, Args: []string{"dust2"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Sender != sender {
		t.Errorf("expected sender %s, got %s", sender, got.Sender)
	}
	if got.Arg(0) != "dust2" || got.Arg(1) != "" {
		t.Errorf("unexpected args %v", got.Args)
	}
	if got.FromConsole() {
		t.Error("player event reported as console")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
	if !(Event{}).FromConsole() {
		t.Error("zero sender should be the console")
	}
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("leave", func(e Event) (any, error) { return nil, nil }, Usage("leave", "Leave your match"))
	d.Register("join", func(e Event) (any, error) { return nil, nil }, Usage("join", "Join a match"))

	cmds := d.Commands()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Command != "join" || cmds[0].Summary != "Join a match" {
		t.Errorf("unexpected first command %+v", cmds[0])
	}
}

func TestDispatcher_Close(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Register("queued", func(e Event) (any, error) {
		wg.Done()
		return nil, nil
	}, Buffered(4))

	d.Dispatch(Event{Command: "queued"})
	d.Close()
	wg.Wait()
}

func TestDispatcher_InternalHidden(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("join", func(e Event) (any, error) { return nil, nil }, Usage("join", "Join a match"))
	d.Register("player:quit", func(e Event) (any, error) { return "gone", nil }, Internal())

	if !d.IsInternal("player:quit") || d.IsInternal("join") {
		t.Error("internal flag not recorded")
	}
	if cmds := d.Commands(); len(cmds) != 1 || cmds[0].Command != "join" {
		t.Errorf("internal command listed in help: %+v", cmds)
	}
	result, err := d.Dispatch(Event{Command: "player:quit"})
	if err != nil || result != "gone" {
		t.Errorf("internal command should still dispatch, got %v, %v", result, err)
	}
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("boom", func(e Event) (any, error) {
		panic("bad state")
	})

	result, err := d.Dispatch(Event{Command: "boom"})
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	found := false
	for _, msg := range logger.messages {
		if len(msg) >= 6 && msg[:6] == "ERROR:" {
			found = true
		}
	}
	if !found {
		t.Error("expected the panic to be logged")
	}
}
