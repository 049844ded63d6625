package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cloudydaiyz/ispy-backend/config"
	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	"github.com/cloudydaiyz/ispy-backend/internal/auth"
	"github.com/cloudydaiyz/ispy-backend/internal/game"
	"github.com/cloudydaiyz/ispy-backend/internal/leaderboard"
	"github.com/cloudydaiyz/ispy-backend/internal/store"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

type wsFixture struct {
	server      *httptest.Server
	handler     *Handler
	gameService *game.Service
	authService *auth.Service
	registry    *wsPkg.Registry
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	mem := store.NewMemory()
	registry := wsPkg.NewRegistry()
	authService := auth.NewService(config.Config{JWTSecret: "test-secret"})
	gameService := game.NewService(game.Stores{
		Users:   mem,
		Players: mem,
		Admins:  mem,
		Stats:   mem,
		History: mem,
		Metrics: mem,
	}, leaderboard.NewMemory(), authService, registry)
	t.Cleanup(gameService.Close)

	handler := NewHandler(registry, authService, gameService)
	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(server.Close)

	return &wsFixture{
		server:      server,
		handler:     handler,
		gameService: gameService,
		authService: authService,
		registry:    registry,
	}
}

func (f *wsFixture) createGame(t *testing.T) {
	t.Helper()
	_, err := f.gameService.CreateGame(game.GameConfiguration{
		Tasks: []game.Task{{
			Title:  "Find the fountain",
			Prompt: "Where is the fountain?",
			Responses: []game.TaskResponse{
				{Content: "In the quad", Correct: true},
				{Content: "In the library", Correct: false},
			},
			ResponseType: "single select",
			Required:     true,
			SuccessValue: 10,
		}},
		StartTime:            time.Now().Add(time.Hour),
		EndTime:              time.Now().Add(2 * time.Hour),
		MinPlayers:           1,
		MaxPlayers:           4,
		MinPlayersToComplete: 1,
	}, "hostuser1", "hostpass1", nil)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
}

func (f *wsFixture) join(t *testing.T, username string) string {
	t.Helper()
	bearer, err := f.gameService.JoinGame(username, "password1")
	if err != nil {
		t.Fatalf("JoinGame(%s) failed: %v", username, err)
	}
	return bearer.AccessToken
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, method string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"method": method, "payload": payload}); err != nil {
		t.Fatalf("WriteJSON(%s) failed: %v", method, err)
	}
}

type frame struct {
	Method  string         `json:"method"`
	Payload map[string]any `json:"payload"`
}

func receive(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return f
}

func authenticate(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	send(t, conn, "authenticate", map[string]string{"accessToken": token})
	if f := receive(t, conn); f.Method != "authenticateAck" {
		t.Fatalf("method = %q, want authenticateAck", f.Method)
	}
}

func TestRequestsBeforeAuthenticationRejected(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	conn := f.dial(t)

	send(t, conn, "startViewGameInfo", nil)
	reply := receive(t, conn)
	if reply.Method != "error" {
		t.Fatalf("method = %q, want error", reply.Method)
	}
	if reply.Payload["type"] != "illegal-state" {
		t.Errorf("error type = %v, want illegal-state", reply.Payload["type"])
	}
}

func TestAuthenticateWithBadToken(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	send(t, conn, "authenticate", map[string]string{"accessToken": "bogus"})
	reply := receive(t, conn)
	if reply.Method != "error" || reply.Payload["type"] != "invalid-auth" {
		t.Fatalf("reply = %+v, want invalid-auth error", reply)
	}
}

func TestAuthenticateHandshake(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	conn := f.dial(t)
	authenticate(t, conn, token)

	if _, ok := f.registry.Get("playerone"); !ok {
		t.Error("expected playerone in the registry after authenticating")
	}
}

func TestAuthenticateAfterGraceElapsed(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	// The grace timer fired before the handshake landed, so the socket
	// is already closed and the handshake must not register it.
	timer := time.NewTimer(0)
	<-timer.C
	session := &clientSession{authTimer: timer}
	payload, err := json.Marshal(map[string]string{"accessToken": token})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if err := f.handler.authenticate(session, payload); !apperr.Is(err, apperr.IllegalState) {
		t.Fatalf("expected IllegalState after grace window, got %v", err)
	}
	if _, ok := f.registry.Get("playerone"); ok {
		t.Error("expected playerone absent from the registry")
	}
}

func TestDuplicateConnectionRejected(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	first := f.dial(t)
	authenticate(t, first, token)

	second := f.dial(t)
	send(t, second, "authenticate", map[string]string{"accessToken": token})
	reply := receive(t, second)
	if reply.Method != "error" || reply.Payload["type"] != "invalid-input" {
		t.Fatalf("reply = %+v, want invalid-input error", reply)
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	conn := f.dial(t)
	authenticate(t, conn, token)

	send(t, conn, "teleport", nil)
	reply := receive(t, conn)
	if reply.Method != "error" || reply.Payload["type"] != "invalid-input" {
		t.Fatalf("reply = %+v, want invalid-input error", reply)
	}
}

func TestViewGameInfoSubscription(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	conn := f.dial(t)
	authenticate(t, conn, token)

	send(t, conn, "startViewGameInfo", nil)
	ack := receive(t, conn)
	if ack.Method != "viewGameInfoAck" {
		t.Fatalf("method = %q, want viewGameInfoAck", ack.Method)
	}
	if ack.Payload["host"] != "hostuser1" {
		t.Errorf("host = %v, want hostuser1", ack.Payload["host"])
	}

	// A roster change is pushed to active viewers.
	f.join(t, "playertwo")
	update := receive(t, conn)
	if update.Method != "gameInfo" {
		t.Fatalf("method = %q, want gameInfo", update.Method)
	}
	players, _ := update.Payload["players"].([]any)
	if len(players) != 2 {
		t.Errorf("players = %v, want 2 entries", players)
	}

	// After unsubscribing, further changes are not pushed.
	send(t, conn, "stopViewGameInfo", nil)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(f.registry.GameInfoViewers()) == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if viewers := f.registry.GameInfoViewers(); len(viewers) != 0 {
		t.Errorf("viewers = %v, want none after stop", viewers)
	}
}

func TestViewGameHostInfoRequiresRole(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	conn := f.dial(t)
	authenticate(t, conn, token)

	send(t, conn, "startViewGameHostInfo", nil)
	reply := receive(t, conn)
	if reply.Method != "error" || reply.Payload["type"] != "invalid-permissions" {
		t.Fatalf("reply = %+v, want invalid-permissions error", reply)
	}
}

func TestViewTaskInfoSubscription(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	info, err := f.gameService.ViewGameInfo()
	if err != nil {
		t.Fatalf("ViewGameInfo failed: %v", err)
	}
	taskID := info.Tasks[0].ID

	conn := f.dial(t)
	authenticate(t, conn, token)

	send(t, conn, "startViewTaskInfo", map[string]string{"taskId": taskID})
	ack := receive(t, conn)
	if ack.Method != "viewTaskInfoAck" {
		t.Fatalf("method = %q, want viewTaskInfoAck", ack.Method)
	}
	if ack.Payload["id"] != taskID {
		t.Errorf("task ID = %v, want %s", ack.Payload["id"], taskID)
	}

	send(t, conn, "startViewTaskInfo", map[string]string{"taskId": "bogus"})
	reply := receive(t, conn)
	if reply.Method != "error" || reply.Payload["type"] != "invalid-input" {
		t.Fatalf("reply = %+v, want invalid-input error", reply)
	}
}

func TestGameEndedDisconnectsClients(t *testing.T) {
	f := newWSFixture(t)
	f.createGame(t)
	token := f.join(t, "playerone")

	conn := f.dial(t)
	authenticate(t, conn, token)

	if err := f.gameService.StartGame(); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if err := f.gameService.EndGame(); err != nil {
		t.Fatalf("EndGame failed: %v", err)
	}

	ended := receive(t, conn)
	if ended.Method != "gameEnded" {
		t.Fatalf("method = %q, want gameEnded", ended.Method)
	}

	// The server closes the connection after the terminal notification.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if _, ok := f.registry.Get("playerone"); ok {
		t.Error("expected playerone to be removed from the registry")
	}
}
