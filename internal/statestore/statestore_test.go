package statestore

import (
	"testing"
)

func TestGetSet(t *testing.T) {
	store := New()
	store.Set("equipment:eq-1", map[string]any{"health": 0.9})

	v, ok := store.Get("equipment:eq-1")
	if !ok {
		t.Fatal("expected value")
	}
	status, ok := v.(map[string]any)
	if !ok || status["health"] != 0.9 {
		t.Fatalf("value = %#v", v)
	}

	store.Delete("equipment:eq-1")
	if _, ok := store.Get("equipment:eq-1"); ok {
		t.Fatal("expected key deleted")
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	store := New()
	ch, cancel := store.Subscribe(4)
	defer cancel()

	store.Set("nav:page", "dashboard")

	change := <-ch
	if change.Key != "nav:page" || change.Value != "dashboard" {
		t.Fatalf("change = %+v", change)
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	store := New()
	ch, cancel := store.Subscribe(1)
	cancel()

	store.Set("k", "v")
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
}

func TestSnapshotCoversOnlyPersistentKeys(t *testing.T) {
	store := New()
	store.SetPersistent("equipment:eq-1", map[string]any{"health": 0.5})
	store.Set("session:ephemeral", "do-not-persist")

	data, err := store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := New()
	if err := restored.Restore(data); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, ok := restored.Get("session:ephemeral"); ok {
		t.Fatal("ephemeral keys must not survive the snapshot")
	}
	v, ok := restored.Get("equipment:eq-1")
	if !ok {
		t.Fatal("persistent key missing after restore")
	}
	status, ok := v.(map[string]any)
	if !ok || status["health"] != 0.5 {
		t.Fatalf("restored value = %#v", v)
	}

	// A restored snapshot must survive another snapshot cycle.
	again, err := restored.Snapshot()
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if string(again) != string(data) {
		t.Fatalf("snapshot changed across restore: %s vs %s", again, data)
	}
}
