package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	"github.com/cloudydaiyz/ispy-backend/internal/auth"
	"github.com/cloudydaiyz/ispy-backend/internal/game"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

// AuthGracePeriod is how long a fresh connection has to authenticate
// before it is forcibly closed.
const AuthGracePeriod = 10 * time.Second

// Inbound socket methods. Anything else is rejected.
const (
	msgAuthenticate          = "authenticate"
	msgStartViewTaskInfo     = "startViewTaskInfo"
	msgStopViewTaskInfo      = "stopViewTaskInfo"
	msgStartViewGameInfo     = "startViewGameInfo"
	msgStopViewGameInfo      = "stopViewGameInfo"
	msgStartViewGameHostInfo = "startViewGameHostInfo"
	msgStopViewGameHostInfo  = "stopViewGameHostInfo"
)

type inboundMessage struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

type Handler struct {
	registry    *wsPkg.Registry
	authService *auth.Service
	gameService *game.Service
}

func NewHandler(registry *wsPkg.Registry, authService *auth.Service, gameService *game.Service) *Handler {
	return &Handler{
		registry:    registry,
		authService: authService,
		gameService: gameService,
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := wsPkg.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}

	// Unauthenticated connections get a fixed grace window, then the
	// transport is closed.
	session := &clientSession{sock: sock}
	session.authTimer = time.AfterFunc(AuthGracePeriod, func() {
		log.Printf("Closing connection from %s: authentication timed out", r.RemoteAddr)
		sock.Close()
	})

	go h.read(session)
}

// clientSession tracks one socket from transport open until close. conn
// is nil until the authenticate handshake succeeds.
type clientSession struct {
	sock      *websocket.Conn
	authTimer *time.Timer
	conn      *wsPkg.Conn
	identity  auth.Identity
}

func (h *Handler) read(s *clientSession) {
	defer func() {
		s.authTimer.Stop()
		if s.conn != nil {
			h.registry.Disconnect(wsPkg.ToUsers(s.conn.Username))
		} else {
			s.sock.Close()
		}
	}()

	for {
		_, data, err := s.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(s, apperr.New(apperr.InvalidInput, "malformed message"))
			continue
		}
		if err := h.dispatch(s, msg); err != nil {
			h.sendError(s, err)
		}
	}
}

func (h *Handler) dispatch(s *clientSession, msg inboundMessage) error {
	if msg.Method == msgAuthenticate {
		return h.authenticate(s, msg.Payload)
	}
	if s.conn == nil {
		return apperr.New(apperr.IllegalState, "connection unauthenticated")
	}

	switch msg.Method {
	case msgStartViewTaskInfo:
		var payload struct {
			TaskID string `json:"taskId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apperr.New(apperr.InvalidInput, "malformed payload")
		}
		return h.startViewTaskInfo(s, payload.TaskID)

	case msgStopViewTaskInfo:
		s.conn.SetTaskInfoView("")
		return nil

	case msgStartViewGameInfo:
		return h.startViewGameInfo(s)

	case msgStopViewGameInfo:
		s.conn.SetViewGameInfo(false)
		return nil

	case msgStartViewGameHostInfo:
		return h.startViewGameHostInfo(s)

	case msgStopViewGameHostInfo:
		s.conn.SetViewGameHostInfo(false)
		return nil

	default:
		return apperr.New(apperr.InvalidInput, "unknown method %s", msg.Method)
	}
}

func (h *Handler) authenticate(s *clientSession, payload json.RawMessage) error {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperr.New(apperr.InvalidInput, "malformed payload")
	}
	identity, err := h.authService.VerifyAccess(req.AccessToken)
	if err != nil {
		return err
	}
	if s.conn != nil {
		return apperr.New(apperr.IllegalState, "connection already authenticated")
	}
	// If the grace window elapsed while the handshake was in flight, the
	// timer already closed the socket. Do not register a dead connection.
	if !s.authTimer.Stop() {
		return apperr.New(apperr.IllegalState, "authentication timed out")
	}

	conn := wsPkg.NewConn(identity.Username, identity.Role, s.sock)
	if err := h.registry.Connect(conn); err != nil {
		s.authTimer.Reset(AuthGracePeriod)
		return apperr.New(apperr.InvalidInput, "user %s is already connected", identity.Username)
	}
	s.conn = conn
	s.identity = identity

	go h.write(conn)
	h.registry.Send(wsPkg.ToUsers(identity.Username), wsPkg.AuthenticateAck())
	return nil
}

func (h *Handler) startViewTaskInfo(s *clientSession, taskID string) error {
	if err := auth.Authorize(s.identity, "viewTaskInfo", ""); err != nil {
		return err
	}
	task, err := h.gameService.ViewTaskInfo(taskID)
	if err != nil {
		return err
	}
	s.conn.SetTaskInfoView(taskID)
	h.registry.Send(wsPkg.ToUsers(s.conn.Username), wsPkg.ViewTaskInfoAck(task))
	return nil
}

func (h *Handler) startViewGameInfo(s *clientSession) error {
	if err := auth.Authorize(s.identity, "viewGameInfo", ""); err != nil {
		return err
	}
	info, err := h.gameService.ViewGameInfo()
	if err != nil {
		return err
	}
	s.conn.SetViewGameInfo(true)
	h.registry.Send(wsPkg.ToUsers(s.conn.Username), wsPkg.ViewGameInfoAck(info))
	return nil
}

func (h *Handler) startViewGameHostInfo(s *clientSession) error {
	if err := auth.Authorize(s.identity, "viewGameHostInfo", ""); err != nil {
		return err
	}
	info, err := h.gameService.ViewGameHostInfo()
	if err != nil {
		return err
	}
	s.conn.SetViewGameHostInfo(true)
	h.registry.Send(wsPkg.ToUsers(s.conn.Username), wsPkg.ViewGameHostInfoAck(info))
	return nil
}

func (h *Handler) sendError(s *clientSession, opErr error) {
	msg := wsPkg.ErrorMessage(string(apperr.KindOf(opErr)), opErr.Error())
	if s.conn != nil {
		h.registry.Send(wsPkg.ToUsers(s.conn.Username), msg)
		return
	}
	// Not in the registry yet; write straight to the socket.
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.sock.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("Write error: %v", err)
	}
}

func (h *Handler) write(c *wsPkg.Conn) {
	defer c.Sock.Close()

	for msg := range c.Send {
		if err := c.Sock.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("Write error for client %s: %v", c.Username, err)
			return
		}
	}
}
