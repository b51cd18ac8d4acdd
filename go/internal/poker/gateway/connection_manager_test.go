package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rfontan/pointly/go/internal/poker"
	"github.com/rfontan/pointly/go/internal/poker/events"
)

type stubAuthorizer struct {
	deny bool
}

func (s stubAuthorizer) Authorize(ctx context.Context, projectID, userID uuid.UUID) error {
	if s.deny {
		return poker.ErrForbidden
	}
	return nil
}

func newTestManager(auth Authorizer) *ConnectionManager {
	return NewConnectionManager(DefaultConnectionConfig(), auth)
}

// newTestConnection builds a connection without a real socket; the pumps are
// never started, so delivery is observable on the Send channel.
func newTestConnection(cm *ConnectionManager, sendBuffer int) *Connection {
	return &Connection{
		ID:      uuid.New().String(),
		UserID:  uuid.New(),
		Send:    make(chan []byte, sendBuffer),
		Manager: cm,
	}
}

func testEvent(t *testing.T, projectID uuid.UUID) *events.Event {
	t.Helper()
	event, err := events.New(projectID, events.EventTypeIssueDeleted, events.IssueDeletedPayload{
		IssueID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return event
}

func receive(t *testing.T, conn *Connection) *events.Event {
	t.Helper()
	select {
	case data := <-conn.Send:
		var event events.Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal delivered event: %v", err)
		}
		return &event
	default:
		t.Fatal("no event delivered")
		return nil
	}
}

func TestBroadcastReachesEveryRoomMember(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	a := newTestConnection(cm, 8)
	b := newTestConnection(cm, 8)
	cm.join(a, projectID)
	cm.join(b, projectID)

	event := testEvent(t, projectID)
	cm.handleBroadcast(event)

	for _, conn := range []*Connection{a, b} {
		got := receive(t, conn)
		if got.ID != event.ID {
			t.Errorf("delivered event ID = %s, want %s", got.ID, event.ID)
		}
	}
}

func TestBroadcastIsRoomScoped(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectA, projectB := uuid.New(), uuid.New()

	inA := newTestConnection(cm, 8)
	inB := newTestConnection(cm, 8)
	cm.join(inA, projectA)
	cm.join(inB, projectB)

	cm.handleBroadcast(testEvent(t, projectA))

	if len(inA.Send) != 1 {
		t.Errorf("room A member got %d events, want 1", len(inA.Send))
	}
	if len(inB.Send) != 0 {
		t.Errorf("room B member got %d events, want 0", len(inB.Send))
	}
}

func TestBroadcastIncludesSender(t *testing.T) {
	// All events are sender-inclusive: the acting client reconciles from the
	// same broadcast as everyone else.
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	actor := newTestConnection(cm, 8)
	cm.join(actor, projectID)

	cm.handleBroadcast(testEvent(t, projectID))

	if len(actor.Send) != 1 {
		t.Errorf("acting connection got %d events, want 1", len(actor.Send))
	}
}

func TestLeaveRemovesMembershipAndDropsEmptyRoom(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectID)
	cm.leave(conn)

	total, rooms := cm.Stats()
	if total != 0 || len(rooms) != 0 {
		t.Errorf("Stats after leave = (%d, %v), want empty", total, rooms)
	}

	if _, open := <-conn.Send; open {
		t.Error("Send channel still open after leave")
	}

	// Events for the abandoned room go nowhere, without error.
	cm.handleBroadcast(testEvent(t, projectID))
}

func TestLeaveIsIdempotent(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectID)
	cm.leave(conn)
	cm.leave(conn) // second leave must not close Send again or panic
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	slow := newTestConnection(cm, 0) // zero buffer, nobody reading
	healthy := newTestConnection(cm, 8)
	cm.join(slow, projectID)
	cm.join(healthy, projectID)

	cm.handleBroadcast(testEvent(t, projectID))

	total, _ := cm.Stats()
	if total != 1 {
		t.Errorf("connections after broadcast = %d, want 1 (slow one dropped)", total)
	}
	if len(healthy.Send) != 1 {
		t.Errorf("healthy connection got %d events, want 1", len(healthy.Send))
	}
}

func TestDeliveryToDepartedConnectionDoesNotPanic(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	departed := newTestConnection(cm, 8)
	live := newTestConnection(cm, 8)
	cm.join(departed, projectID)
	cm.join(live, projectID)

	// A pump teardown can close a connection between the broadcaster taking
	// its room snapshot and delivering to it. Closing first and delivering
	// second reproduces that ordering.
	cm.leave(departed)

	if departed.trySend([]byte(`{}`)) {
		t.Error("trySend on a closed connection reported success")
	}

	cm.handleBroadcast(testEvent(t, projectID))
	if got := receive(t, live); got.ProjectID != projectID.String() {
		t.Errorf("live connection got event for project %s, want %s", got.ProjectID, projectID)
	}
}

func TestJoinRebindsRoom(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectA, projectB := uuid.New(), uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectA)
	cm.join(conn, projectB)

	cm.handleBroadcast(testEvent(t, projectA))
	if len(conn.Send) != 0 {
		t.Error("connection still receives events from its previous room")
	}

	cm.handleBroadcast(testEvent(t, projectB))
	if len(conn.Send) != 1 {
		t.Error("connection does not receive events from its new room")
	}
}

func TestJoinRoomClientMessage(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectA, projectB := uuid.New(), uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectA)

	msg, _ := json.Marshal(ClientMessage{Type: "joinRoom", ProjectID: projectB.String()})
	conn.handleClientMessage(msg)

	cm.handleBroadcast(testEvent(t, projectB))
	if len(conn.Send) != 1 {
		t.Error("joinRoom message did not re-bind the connection")
	}
}

func TestJoinRoomClientMessageDenied(t *testing.T) {
	cm := newTestManager(stubAuthorizer{deny: true})
	projectA, projectB := uuid.New(), uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectA)

	msg, _ := json.Marshal(ClientMessage{Type: "joinRoom", ProjectID: projectB.String()})
	conn.handleClientMessage(msg)

	cm.handleBroadcast(testEvent(t, projectA))
	if len(conn.Send) != 1 {
		t.Error("denied joinRoom removed the connection from its current room")
	}
}

func TestMalformedClientMessagesAreIgnored(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectID)

	conn.handleClientMessage([]byte("not json"))
	conn.handleClientMessage([]byte(`{"type":"joinRoom","project_id":"not-a-uuid"}`))
	conn.handleClientMessage([]byte(`{"type":"unknownCommand"}`))

	cm.handleBroadcast(testEvent(t, projectID))
	if len(conn.Send) != 1 {
		t.Error("malformed client messages disturbed room membership")
	}
}

func TestStartDeliversQueuedBroadcasts(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	cm.BroadcastToProject(testEvent(t, projectID))

	select {
	case <-conn.Send:
	case <-time.After(time.Second):
		t.Fatal("queued broadcast was not delivered")
	}
}

func TestLocalPublisherFeedsBroadcaster(t *testing.T) {
	cm := newTestManager(stubAuthorizer{})
	projectID := uuid.New()

	conn := newTestConnection(cm, 8)
	cm.join(conn, projectID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	publisher := NewLocalPublisher(cm)
	if err := publisher.Publish(context.Background(), testEvent(t, projectID)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-conn.Send:
	case <-time.After(time.Second):
		t.Fatal("published event was not delivered")
	}
}
