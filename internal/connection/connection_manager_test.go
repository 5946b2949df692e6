package connection

import (
	"testing"

	"github.com/edgarogh/twiiiiter/internal/database"
)

type nopReceiver struct {
	closing bool
}

func (r *nopReceiver) Push(database.StoredMessage) {}
func (r *nopReceiver) Closing()                    { r.closing = true }

func TestManagerClaim(t *testing.T) {
	manager := NewManager()
	first := &nopReceiver{}
	second := &nopReceiver{}

	if !manager.Claim("Bob", first) {
		t.Fatal("Expect first claim to succeed")
	}
	if manager.Claim("Bob", second) {
		t.Fatal("Expect second claim of a live name to fail")
	}

	got, ok := manager.Get("Bob")
	if !ok || got != Receiver(first) {
		t.Fatal("Expect Bob to be bound to the first receiver")
	}

	// a stale session must not evict its replacement
	manager.Release("Bob", second)
	if _, ok := manager.Get("Bob"); !ok {
		t.Fatal("Expect Bob to still be bound after a stale release")
	}

	manager.Release("Bob", first)
	if _, ok := manager.Get("Bob"); ok {
		t.Fatal("Expect Bob to be unbound after release")
	}
	if !manager.Claim("Bob", second) {
		t.Fatal("Expect the name to be claimable again after release")
	}
}

func TestManagerCloseAll(t *testing.T) {
	manager := NewManager()
	receivers := []*nopReceiver{{}, {}, {}}
	names := []string{"Alice", "Bob", "Carol"}
	for i, r := range receivers {
		if !manager.Claim(names[i], r) {
			t.Fatalf("Expect claim of %s to succeed", names[i])
		}
	}

	manager.CloseAll()
	for i, r := range receivers {
		if !r.closing {
			t.Errorf("Expect %s to have been asked to close", names[i])
		}
	}
}
