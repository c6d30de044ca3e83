package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ashish13377/Intellido/internal/services/ai"
)

type memoryArchive struct {
	mu     sync.Mutex
	data   map[string][]Message
	locks  map[string]chan struct{}
	saves  int
	saveFn func(id string, messages []Message) error
}

var _ Archive = (*memoryArchive)(nil)

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{data: map[string][]Message{}, locks: map[string]chan struct{}{}}
}

func (a *memoryArchive) Save(_ context.Context, id string, messages []Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saves++
	if a.saveFn != nil {
		if err := a.saveFn(id, messages); err != nil {
			return err
		}
	}
	a.data[id] = append([]Message(nil), messages...)
	return nil
}

func (a *memoryArchive) Load(_ context.Context, id string) ([]Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return append([]Message(nil), m...), nil
}

func (a *memoryArchive) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.data[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(a.data, id)
	return nil
}

func (a *memoryArchive) Lock(ctx context.Context, id string) (func(), error) {
	a.mu.Lock()
	ch, ok := a.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		a.locks[id] = ch
	}
	a.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *memoryArchive) Ping(context.Context) error { return nil }

func TestState_AppendOnly(t *testing.T) {
	t.Parallel()

	s := NewState("s1", "system prompt")
	s.AppendUser(`{"type":"user","user":"hi"}`)
	s.AppendAssistant(`{"type":"plan","plan":"p"}`)
	s.AppendToolResult(`{"type":"observation","observation":[]}`)

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}

	snap := s.Snapshot()
	wantRoles := []string{ai.RoleSystem, ai.RoleUser, ai.RoleAssistant, ai.RoleTool}
	for i, role := range wantRoles {
		if snap[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, snap[i].Role, role)
		}
	}

	snap[1].Content = "mutated"
	if s.Snapshot()[1].Content == "mutated" {
		t.Error("Snapshot must return a copy")
	}

	if got := s.Transcript(); len(got) != 3 || got[0].Role != ai.RoleUser {
		t.Errorf("Transcript() = %+v", got)
	}
}

func TestState_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := NewState("s1", "sys")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendUser("x")
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	if s.Len() != 51 {
		t.Errorf("Len() = %d, want 51", s.Len())
	}
}

func TestManager_InMemory(t *testing.T) {
	t.Parallel()

	m := NewManager("sys", nil, nil)
	ctx := context.Background()

	session, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.State().Len() != 1 {
		t.Errorf("Expected seeded system prompt")
	}

	got, err := m.Get(ctx, session.ID())
	if err != nil || got != session {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if err := m.Delete(ctx, session.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete(ctx, session.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestManager_AcquireSerialisesTurns(t *testing.T) {
	t.Parallel()

	m := NewManager("sys", nil, nil)
	ctx := context.Background()
	session, _ := m.Create(ctx)

	_, release, err := m.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, _, err := m.Acquire(waitCtx, session.ID()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected second turn to wait until its deadline, got %v", err)
	}

	release()

	_, release2, err := m.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	release2()
}

func TestManager_ArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	archive := newMemoryArchive()
	ctx := context.Background()

	first := NewManager("sys", archive, nil)
	session, err := first.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s, release, err := first.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	s.State().AppendUser("hello")
	release()

	// a second replica restores from the archive
	second := NewManager("sys", archive, nil)
	restored, err := second.Get(ctx, session.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if restored.State().Len() != 2 {
		t.Errorf("Expected restored history of 2, got %d", restored.State().Len())
	}

	// the first replica catches up on acquire
	s2, release2, err := second.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	s2.State().AppendAssistant("reply")
	release2()

	s1, release1, err := first.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if s1.State().Len() != 3 {
		t.Errorf("Expected first replica to reload 3 messages, got %d", s1.State().Len())
	}
	release1()
}

func TestManager_ArchiveSaveFailureOnRelease(t *testing.T) {
	t.Parallel()

	archive := newMemoryArchive()
	m := NewManager("sys", archive, nil)
	ctx := context.Background()
	session, _ := m.Create(ctx)

	archive.mu.Lock()
	archive.saveFn = func(string, []Message) error { return errors.New("redis down") }
	archive.mu.Unlock()

	_, release, err := m.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	// lock must still be free
	_, release2, err := m.Acquire(ctx, session.ID())
	if err != nil {
		t.Fatalf("Acquire() after failed save error = %v", err)
	}
	release2()
}

func TestManager_Sweep(t *testing.T) {
	t.Parallel()

	m := NewManager("sys", nil, nil)
	ctx := context.Background()
	_, _ = m.Create(ctx)
	_, _ = m.Create(ctx)

	if n := m.Sweep(time.Hour); n != 0 {
		t.Errorf("Sweep(1h) removed %d fresh sessions", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := m.Sweep(time.Millisecond); n != 2 {
		t.Errorf("Sweep(1ms) removed %d, want 2", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after sweep", m.Len())
	}
}

func TestRedisKeys(t *testing.T) {
	t.Parallel()

	if got := messagesKey("abc"); got != "intellido:session:abc:messages" {
		t.Errorf("messagesKey() = %q", got)
	}
	if got := lockKey("abc"); got != "intellido:session:abc:lock" {
		t.Errorf("lockKey() = %q", got)
	}
}
