package conversation

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore(StoreConfig{})

	id := s.Create("chat", map[string]any{"prompt": "hi"}, "")
	if err := uuid.Validate(id); err != nil {
		t.Fatalf("thread id %q is not a valid UUID: %v", id, err)
	}

	th, ok := s.Get(id)
	if !ok {
		t.Fatal("freshly created thread not found")
	}
	if th.ToolName != "chat" {
		t.Errorf("ToolName = %q, want chat", th.ToolName)
	}
	if _, ok := s.Get(uuid.NewString()); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestAddTurnCap(t *testing.T) {
	s := NewStore(StoreConfig{MaxTurns: 2})
	id := s.Create("chat", nil, "")

	if !s.AddTurn(id, Turn{Role: RoleUser, Content: "one"}) {
		t.Fatal("first turn rejected")
	}
	if !s.AddTurn(id, Turn{Role: RoleAssistant, Content: "two"}) {
		t.Fatal("second turn rejected")
	}
	// Cap reached: the append fails non-fatally.
	if s.AddTurn(id, Turn{Role: RoleUser, Content: "three"}) {
		t.Error("turn beyond the cap should be dropped")
	}

	th, _ := s.Get(id)
	if got := th.TurnCount(); got != 2 {
		t.Errorf("TurnCount = %d, want 2", got)
	}
	if got := s.RemainingTurns(id); got != 0 {
		t.Errorf("RemainingTurns = %d, want 0", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := NewStore(StoreConfig{TTL: time.Hour})
	now := time.Now()
	s.now = func() time.Time { return now }

	id := s.Create("debug", nil, "")

	now = now.Add(30 * time.Minute)
	if _, ok := s.Get(id); !ok {
		t.Fatal("thread expired before its TTL")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := s.Get(id); ok {
		t.Error("expired thread should be transparently absent")
	}
	if s.AddTurn(id, Turn{Role: RoleUser, Content: "late"}) {
		t.Error("append to an expired thread should fail non-fatally")
	}
	if s.Len() != 0 {
		t.Errorf("expired thread should be evicted on access, Len = %d", s.Len())
	}
}

func TestTTLRefreshOnAppend(t *testing.T) {
	s := NewStore(StoreConfig{TTL: time.Hour})
	now := time.Now()
	s.now = func() time.Time { return now }

	id := s.Create("chat", nil, "")

	// Appends push last_updated forward, extending the lifetime.
	for i := 0; i < 3; i++ {
		now = now.Add(45 * time.Minute)
		if !s.AddTurn(id, Turn{Role: RoleUser, Content: "ping"}) {
			t.Fatalf("append %d failed", i)
		}
	}
	if _, ok := s.Get(id); !ok {
		t.Error("thread with recent appends should still be live")
	}
}

func TestChainOrdering(t *testing.T) {
	s := NewStore(StoreConfig{})

	root := s.Create("chat", nil, "")
	child := s.Create("debug", nil, root)
	grandchild := s.Create("codereview", nil, child)

	chain := s.Chain(grandchild)
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	// Root-first: a thread's turns come after its parent's.
	if chain[0].ID != root || chain[1].ID != child || chain[2].ID != grandchild {
		t.Errorf("chain order = [%s %s %s], want root, child, grandchild",
			chain[0].ID, chain[1].ID, chain[2].ID)
	}
}

func TestChainCycleGuard(t *testing.T) {
	s := NewStore(StoreConfig{})

	a := s.Create("chat", nil, "")
	b := s.Create("chat", nil, a)
	// Corrupt the parent link to form a cycle.
	th, _ := s.Get(a)
	th.ParentID = b

	chain := s.Chain(b)
	if len(chain) != 2 {
		t.Fatalf("cyclic chain should terminate, got %d threads", len(chain))
	}
}

func TestFileListNewestFirstDedup(t *testing.T) {
	s := NewStore(StoreConfig{})

	root := s.Create("chat", nil, "")
	s.AddTurn(root, Turn{Role: RoleUser, Content: "a", Files: []string{"/src/a.go", "/src/b.go"}})
	child := s.Create("debug", nil, root)
	s.AddTurn(child, Turn{Role: RoleUser, Content: "b", Files: []string{"/src/b.go", "/src/c.go"}})

	got := s.FileList(child)
	want := []string{"/src/b.go", "/src/c.go", "/src/a.go"}
	if len(got) != len(want) {
		t.Fatalf("FileList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FileList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestImageList(t *testing.T) {
	s := NewStore(StoreConfig{})
	id := s.Create("chat", nil, "")
	s.AddTurn(id, Turn{Role: RoleUser, Content: "x", Images: []string{"/img/a.png"}})
	s.AddTurn(id, Turn{Role: RoleAssistant, Content: "y", Images: []string{"/img/a.png", "/img/b.png"}})

	got := s.ImageList(id)
	if len(got) != 2 || got[0] != "/img/a.png" || got[1] != "/img/b.png" {
		t.Errorf("ImageList = %v", got)
	}
}

func TestSweep(t *testing.T) {
	s := NewStore(StoreConfig{TTL: time.Hour})
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Create("chat", nil, "")
	s.Create("chat", nil, "")
	now = now.Add(2 * time.Hour)
	fresh := s.Create("chat", nil, "")

	if evicted := s.Sweep(); evicted != 2 {
		t.Errorf("Sweep evicted %d, want 2", evicted)
	}
	if _, ok := s.Get(fresh); !ok {
		t.Error("fresh thread should survive the sweep")
	}
}

func TestOnEvictHook(t *testing.T) {
	s := NewStore(StoreConfig{TTL: time.Hour})
	now := time.Now()
	s.now = func() time.Time { return now }

	var evicted []string
	s.OnEvict(func(id string) { evicted = append(evicted, id) })

	swept := s.Create("chat", nil, "")
	lazy := s.Create("debug", nil, "")
	now = now.Add(2 * time.Hour)
	fresh := s.Create("chat", nil, "")

	// Lazy eviction on access fires the hook.
	if _, ok := s.Get(lazy); ok {
		t.Fatal("expired thread should be absent")
	}
	if len(evicted) != 1 || evicted[0] != lazy {
		t.Fatalf("evicted = %v, want [%s]", evicted, lazy)
	}

	// The sweep fires it for the remaining expired thread only.
	s.Sweep()
	if len(evicted) != 2 || evicted[1] != swept {
		t.Errorf("evicted = %v, want the swept thread appended", evicted)
	}
	if _, ok := s.Get(fresh); !ok {
		t.Error("fresh thread should survive")
	}
}
