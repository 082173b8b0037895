package session

import (
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.NewID()
	m.Create(&Session{ID: id, SourceURL: "https://a.example", TargetURL: "https://b.example"})

	s, ok := m.Get(id)
	if !ok {
		t.Fatal("session not found after create")
	}
	if s.Coordinator == nil {
		t.Error("session created without a coordinator")
	}
	if s.SourceURL != "https://a.example" {
		t.Errorf("source url = %q", s.SourceURL)
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := NewManager(time.Hour)
	if _, ok := m.Get("nope"); ok {
		t.Error("unknown session reported as found")
	}
}

func TestExpiredSessionDroppedOnAccess(t *testing.T) {
	m := NewManager(time.Millisecond)
	id := m.NewID()
	m.Create(&Session{ID: id})

	time.Sleep(5 * time.Millisecond)
	if _, ok := m.Get(id); ok {
		t.Error("expired session still retrievable")
	}
	if m.Count() != 0 {
		t.Errorf("count = %d, want 0", m.Count())
	}
}

func TestCleanupExpired(t *testing.T) {
	m := NewManager(time.Millisecond)
	m.Create(&Session{ID: m.NewID()})
	m.Create(&Session{ID: m.NewID()})

	time.Sleep(5 * time.Millisecond)
	if removed := m.CleanupExpired(); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
}

func TestDeleteDistinctSessionsIndependent(t *testing.T) {
	m := NewManager(time.Hour)
	a := m.NewID()
	b := m.NewID()
	m.Create(&Session{ID: a})
	m.Create(&Session{ID: b})

	m.Delete(a)
	if _, ok := m.Get(a); ok {
		t.Error("deleted session still present")
	}
	if _, ok := m.Get(b); !ok {
		t.Error("deleting one session removed another")
	}
}
