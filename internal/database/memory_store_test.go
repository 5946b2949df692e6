package database

import (
	"bytes"
	"testing"
)

func TestMemoryStoreAccounts(t *testing.T) {
	store := NewMemoryStore()

	ok, err := store.AccountExists("Alice")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Expect Alice to be unknown before first save")
	}

	if err := store.SaveAccount("Alice", 1000); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAccount("Alice", 2000); err != nil {
		t.Fatal(err)
	}

	ok, err = store.AccountExists("Alice")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Expect Alice to exist after save")
	}

	if err := store.SaveAccount("", 0); err == nil {
		t.Fatal("Expect an error for an empty username")
	}
}

func TestMemoryStoreFollowings(t *testing.T) {
	store := NewMemoryStore()

	changed, _ := store.Follow("Bob", "Alice")
	if !changed {
		t.Fatal("Expect first follow to change the graph")
	}
	changed, _ = store.Follow("Bob", "Alice")
	if changed {
		t.Fatal("Expect duplicate follow to be a no-op")
	}

	followees, _ := store.ListFollowees("Bob")
	if len(followees) != 1 || followees[0] != "Alice" {
		t.Fatalf("Expect [Alice], got %v", followees)
	}
	followers, _ := store.ListFollowers("Alice")
	if len(followers) != 1 || followers[0] != "Bob" {
		t.Fatalf("Expect [Bob], got %v", followers)
	}
	// the edge is directed
	followees, _ = store.ListFollowees("Alice")
	if len(followees) != 0 {
		t.Fatalf("Expect Alice to follow nobody, got %v", followees)
	}

	changed, _ = store.Unfollow("Bob", "Alice")
	if !changed {
		t.Fatal("Expect unfollow of an existing edge to change the graph")
	}
	changed, _ = store.Unfollow("Bob", "Alice")
	if changed {
		t.Fatal("Expect unfollow of a missing edge to be a no-op")
	}
}

func TestMemoryStoreMessageLog(t *testing.T) {
	store := NewMemoryStore()

	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		seq, err := store.AppendMessage("Alice", int64(i), []byte(body))
		if err != nil {
			t.Fatal(err)
		}
		if seq != uint64(i+1) {
			t.Fatalf("Expect seq %d, got %d", i+1, seq)
		}
	}

	messages, err := store.MessagesAfter("Alice", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expect 3 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if !bytes.Equal(msg.Body, []byte(bodies[i])) {
			t.Errorf("Expect body %q at %d, got %q", bodies[i], i, msg.Body)
		}
	}

	messages, _ = store.MessagesAfter("Alice", 2, 100)
	if len(messages) != 1 || !bytes.Equal(messages[0].Body, []byte("third")) {
		t.Fatalf("Expect [third] after position 2, got %v", messages)
	}

	messages, _ = store.MessagesAfter("Alice", 1, 1)
	if len(messages) != 1 || messages[0].Seq != 2 {
		t.Fatalf("Expect bounded scan to return seq 2, got %v", messages)
	}

	messages, _ = store.MessagesAfter("Alice", 3, 100)
	if len(messages) != 0 {
		t.Fatalf("Expect no messages after the log head, got %v", messages)
	}

	messages, _ = store.MessagesAfter("Nobody", 0, 100)
	if len(messages) != 0 {
		t.Fatalf("Expect no messages for an unknown author, got %v", messages)
	}
}

func TestMemoryStoreCursors(t *testing.T) {
	store := NewMemoryStore()

	position, err := store.GetCursor("Bob", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if position != 0 {
		t.Fatalf("Expect a missing cursor to read as 0, got %d", position)
	}

	if err := store.SetCursor("Bob", "Alice", 7); err != nil {
		t.Fatal(err)
	}
	position, _ = store.GetCursor("Bob", "Alice")
	if position != 7 {
		t.Fatalf("Expect 7, got %d", position)
	}

	if err := store.DeleteCursor("Bob", "Alice"); err != nil {
		t.Fatal(err)
	}
	position, _ = store.GetCursor("Bob", "Alice")
	if position != 0 {
		t.Fatalf("Expect 0 after delete, got %d", position)
	}
}
