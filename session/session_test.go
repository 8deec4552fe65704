package session

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/auth"
	"github.com/wfunc/guessduel/config"
	"github.com/wfunc/guessduel/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent   [][]byte
	closed bool
}

func (m *MockConnection) Send(data []byte) error {
	if m.closed {
		return network.ErrConnectionClosed
	}
	m.sent = append(m.sent, data)
	return nil
}
func (m *MockConnection) ReadMessage() ([]byte, error) { return nil, nil }
func (m *MockConnection) Close() error                 { m.closed = true; return nil }
func (m *MockConnection) RemoteAddr() net.Addr         { return &net.TCPAddr{} }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Remove(t *testing.T) {
	manager := NewManager()
	sess := NewSession(&MockConnection{}, 1, 10)

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	found := manager.GetByUserID(1)
	if len(found) != 1 || found[0] != sess {
		t.Fatal("GetByUserID should return the same session instance")
	}

	manager.Remove(sess.ID())
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	if len(manager.GetByUserID(1)) != 0 {
		t.Fatal("GetByUserID should not find the removed session")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()
	manager.Add(NewSession(&MockConnection{}, 100, 1))
	manager.Add(NewSession(&MockConnection{}, 200, 1))
	manager.Add(NewSession(&MockConnection{}, 100, 2))

	if n := len(manager.GetByUserID(100)); n != 2 {
		t.Errorf("Expected 2 sessions for UserID 100, got %d", n)
	}
	if n := len(manager.GetByUserID(200)); n != 1 {
		t.Errorf("Expected 1 session for UserID 200, got %d", n)
	}
	if n := len(manager.GetByUserID(300)); n != 0 {
		t.Errorf("Expected 0 sessions for UserID 300, got %d", n)
	}
}

func TestSession_SendAndCloseAll(t *testing.T) {
	manager := NewManager()
	conn := &MockConnection{}
	sess := NewSession(conn, 1, 1)
	manager.Add(sess)

	before := sess.LastActive()
	if err := sess.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(conn.sent))
	}
	if sess.LastActive().Before(before) {
		t.Error("Send should refresh LastActive")
	}

	manager.CloseAll()
	if !conn.closed {
		t.Error("CloseAll should close the connection")
	}
	if err := sess.Send([]byte("late")); !errors.Is(err, network.ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

type fakeAccounts struct{ ensured []uint }

func (f *fakeAccounts) EnsureAccount(_ context.Context, userID uint, _, _ string) error {
	f.ensured = append(f.ensured, userID)
	return nil
}

type fakeRooms map[uint][]uint

func (f fakeRooms) IsParticipant(_ context.Context, roomID, userID uint) (bool, error) {
	players, ok := f[roomID]
	if !ok {
		return false, apperr.ErrRoomNotFound
	}
	for _, p := range players {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

func TestGateway_Admit(t *testing.T) {
	validator := auth.NewStaticValidator([]config.StaticToken{
		{Token: "alice", UserID: 1, Email: "alice@example.com"},
		{Token: "carol", UserID: 3, Email: "carol@example.com"},
	})
	accounts := &fakeAccounts{}
	gw := NewGateway(validator, accounts, fakeRooms{10: {1, 2}})
	ctx := context.Background()

	id, err := gw.Admit(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if id.UserID != 1 {
		t.Errorf("Expected user 1, got %d", id.UserID)
	}
	if len(accounts.ensured) != 1 || accounts.ensured[0] != 1 {
		t.Errorf("Expected account 1 to be ensured, got %v", accounts.ensured)
	}

	tests := []struct {
		name   string
		token  string
		roomID uint
		code   int
	}{
		{"no token", "", 10, network.CloseUnauthenticated},
		{"bad token", "mallory", 10, network.CloseUnauthenticated},
		{"outsider", "carol", 10, network.CloseNotParticipant},
		{"missing room", "alice", 99, network.CloseNotParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gw.Admit(ctx, tt.token, tt.roomID)
			code, ok := CloseCode(err)
			if !ok || code != tt.code {
				t.Errorf("Expected close code %d, got %d (err=%v)", tt.code, code, err)
			}
		})
	}

	if _, ok := CloseCode(errors.New("db down")); ok {
		t.Error("unexpected errors should not map to a close code")
	}
}
