package core

import "testing"

func TestRegistryJoinLeaveLifecycle(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")

	participants, cursors := reg.Join("f1", alice)
	if len(participants) != 0 || len(cursors) != 0 {
		t.Fatalf("first joiner should see an empty snapshot, got %v / %v", participants, cursors)
	}
	if reg.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.SessionCount())
	}

	participants, _ = reg.Join("f1", bob)
	if len(participants) != 1 || participants[0] != "alice" {
		t.Fatalf("bob should see alice in the pre-join snapshot, got %v", participants)
	}

	reg.Leave("f1", alice)
	if reg.InSession("f1", alice) {
		t.Fatal("alice should be out of the session after leave")
	}

	reg.Leave("f1", bob)
	if reg.SessionCount() != 0 {
		t.Fatalf("empty session should be reclaimed, got %d sessions", reg.SessionCount())
	}
}

func TestRegistryLeaveBeforeJoinIsNoop(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")

	reg.Leave("ghost", alice)
	if reg.SessionCount() != 0 {
		t.Fatalf("leave of unknown file must not create a session, got %d", reg.SessionCount())
	}
}

func TestRegistryDoubleJoinSingleLeave(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")

	reg.Join("f1", alice)
	reg.Join("f1", alice)

	reg.Leave("f1", alice)
	if reg.InSession("f1", alice) {
		t.Fatal("repeated join is a no-op, a single leave removes the client")
	}
	if reg.SessionCount() != 0 {
		t.Fatalf("session should be reclaimed, got %d", reg.SessionCount())
	}
}

func TestRegistrySnapshotOnJoinIncludesPriorCursor(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")

	reg.Join("f1", alice)
	reg.UpdateCursor("f1", "alice", Position{Line: 3, Column: 7}, alice)

	_, cursors := reg.Join("f1", bob)
	pos, ok := cursors["alice"]
	if !ok {
		t.Fatal("late joiner must see alice's cursor in the snapshot")
	}
	if pos.Line != 3 || pos.Column != 7 {
		t.Fatalf("unexpected cursor position: %+v", pos)
	}
}

func TestRegistryCursorSelfEchoAvoidance(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")

	reg.Join("f1", alice)
	reg.Join("f1", bob)
	drainEvents(alice)
	drainEvents(bob)

	reg.UpdateCursor("f1", "alice", Position{Line: 1, Column: 2}, alice)

	ev := mustEvent(t, bob.Events, EventReceiveCursor)
	if ev.Username != "alice" || ev.Position.Line != 1 || ev.Position.Column != 2 {
		t.Fatalf("unexpected cursor event: %+v", ev)
	}
	mustNoEvent(t, alice.Events, EventReceiveCursor)
}

func TestRegistryCursorRequiresParticipant(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")
	carol := newTestClient("c", "carol", "p1")

	reg.Join("f1", alice)

	// Bob never joined f1; his cursor must not enter the session.
	reg.UpdateCursor("f1", "bob", Position{Line: 1, Column: 2}, bob)
	mustNoEvent(t, alice.Events, EventReceiveCursor)

	_, cursors := reg.Snapshot("f1")
	if _, ok := cursors["bob"]; ok {
		t.Fatalf("cursor exists for non-participant bob: %v", cursors)
	}

	// Even after bob's connection unwinds, later joiners see a clean snapshot.
	reg.DisconnectAll(bob)
	_, cursors = reg.Join("f1", carol)
	if len(cursors) != 0 {
		t.Fatalf("stale cursor leaked into the join snapshot: %v", cursors)
	}

	// The same update from an actual participant goes through.
	reg.Join("f1", bob)
	reg.UpdateCursor("f1", "bob", Position{Line: 1, Column: 2}, bob)
	_, cursors = reg.Snapshot("f1")
	if cursors["bob"] != (Position{Line: 1, Column: 2}) {
		t.Fatalf("participant cursor missing: %v", cursors)
	}
}

func TestRegistryChangeRelay(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")
	carol := newTestClient("c", "carol", "p1")

	reg.Join("f1", alice)
	reg.Join("f1", bob)
	reg.Join("f1", carol)
	drainEvents(alice)
	drainEvents(bob)
	drainEvents(carol)

	change := &Change{
		From: Position{Line: 1, Column: 0},
		To:   Position{Line: 1, Column: 0},
		Text: "hello",
	}
	reg.RelayChange("f1", alice, change)

	for _, receiver := range []*Client{bob, carol} {
		ev := mustEvent(t, receiver.Events, EventReceiveChange)
		if ev.Change != change {
			t.Fatalf("change must be relayed verbatim, got %+v", ev.Change)
		}
		if ev.FileID != "f1" {
			t.Fatalf("unexpected file id: %s", ev.FileID)
		}
	}
	mustNoEvent(t, alice.Events, EventReceiveChange)
}

func TestRegistryChangeToUnknownFileDropped(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")

	reg.Join("f1", alice)
	reg.RelayChange("ghost", alice, &Change{Text: "x"})

	if reg.SessionCount() != 1 {
		t.Fatalf("relay to unknown file must not create a session, got %d", reg.SessionCount())
	}
}

func TestRegistryLeaveRemovesCursorAndNotifies(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")

	reg.Join("f1", alice)
	reg.Join("f1", bob)
	reg.UpdateCursor("f1", "alice", Position{Line: 5, Column: 1}, alice)
	drainEvents(alice)
	drainEvents(bob)

	reg.Leave("f1", alice)

	cursorEv := mustEvent(t, bob.Events, EventRemoveCursor)
	if cursorEv.Username != "alice" || cursorEv.FileID != "f1" {
		t.Fatalf("unexpected cursor removal: %+v", cursorEv)
	}
	leftEv := mustEvent(t, bob.Events, EventUserLeft)
	if leftEv.Username != "alice" || leftEv.FileID != "f1" {
		t.Fatalf("unexpected user-left event: %+v", leftEv)
	}

	_, cursors := reg.Snapshot("f1")
	if _, ok := cursors["alice"]; ok {
		t.Fatal("alice's cursor must be gone after leave")
	}
}

func TestRegistrySecondTabKeepsUserPresent(t *testing.T) {
	reg := NewRegistry()
	tab1 := newTestClient("a1", "alice", "p1")
	tab2 := newTestClient("a2", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")

	reg.Join("f1", tab1)
	reg.Join("f1", tab2)
	reg.Join("f1", bob)
	reg.UpdateCursor("f1", "alice", Position{Line: 2, Column: 2}, tab1)
	drainEvents(bob)

	reg.Leave("f1", tab1)
	mustNoEvent(t, bob.Events, EventUserLeft)

	_, cursors := reg.Snapshot("f1")
	if _, ok := cursors["alice"]; !ok {
		t.Fatal("cursor must survive while another tab of the user remains")
	}

	reg.Leave("f1", tab2)
	ev := mustEvent(t, bob.Events, EventUserLeft)
	if ev.Username != "alice" {
		t.Fatalf("unexpected user-left event: %+v", ev)
	}
}

func TestRegistryDisconnectAllCleansEverySession(t *testing.T) {
	reg := NewRegistry()
	alice := newTestClient("a", "alice", "p1")
	bob := newTestClient("b", "bob", "p1")

	reg.Join("f1", alice)
	reg.Join("f2", alice)
	reg.Join("f1", bob)
	reg.UpdateCursor("f1", "alice", Position{Line: 1, Column: 1}, alice)
	drainEvents(bob)

	files := reg.DisconnectAll(alice)
	if len(files) != 2 {
		t.Fatalf("expected 2 affected files, got %v", files)
	}
	if reg.InSession("f1", alice) || reg.InSession("f2", alice) {
		t.Fatal("disconnect must remove the client from every session")
	}
	if reg.SessionCount() != 1 {
		t.Fatalf("f2 should be reclaimed and f1 kept, got %d sessions", reg.SessionCount())
	}

	mustEvent(t, bob.Events, EventRemoveUserCursor)
	mustEvent(t, bob.Events, EventUserLeft)

	// A second disconnect has nothing left to undo.
	if files := reg.DisconnectAll(alice); len(files) != 0 {
		t.Fatalf("second disconnect should find nothing, got %v", files)
	}
}
