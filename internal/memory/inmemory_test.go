package memory

import (
	"context"
	"testing"
)

func TestInMemoryStoreSaveAndRecent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		err := s.SaveTurn(ctx, TurnRecord{UserID: "u1", SessionID: "s1", Role: "user", Content: content})
		if err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	recent, err := s.RecentContext(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentContext() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].Content != "second" || recent[1].Content != "third" {
		t.Fatalf("unexpected recent order: %+v", recent)
	}
	if recent[0].ID == "" {
		t.Fatalf("record ID should be assigned on save")
	}
}

func TestInMemoryStoreUnknownUser(t *testing.T) {
	s := NewInMemoryStore()
	recent, err := s.RecentContext(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("RecentContext() error = %v", err)
	}
	if recent != nil {
		t.Fatalf("recent = %v, want nil", recent)
	}
}
