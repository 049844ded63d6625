package game

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	"github.com/cloudydaiyz/ispy-backend/internal/auth"
)

// Handler exposes the session operation surface over HTTP. It resolves
// the caller's identity from the bearer token, checks the operation's
// role predicate, and maps error kinds to statuses; the core trusts the
// identity it is handed.
type Handler struct {
	service     *Service
	authService *auth.Service
}

func NewHandler(service *Service, authService *auth.Service) *Handler {
	return &Handler{
		service:     service,
		authService: authService,
	}
}

type CreateGameRequest struct {
	Config       GameConfiguration `json:"config"`
	HostUsername string            `json:"hostUsername"`
	HostPassword string            `json:"hostPassword"`
	Admins       []AdminCredential `json:"admins"`
}

type JoinGameRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SubmitTaskRequest struct {
	TaskID    string   `json:"taskId"`
	Responses []string `json:"responses"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type taskIDRequest struct {
	TaskID string `json:"taskId"`
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.Metrics()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// Game serves viewGameInfo on GET and createGame on POST.
func (h *Handler) Game(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.viewGameInfo(w, r)
	case http.MethodPost:
		h.createGame(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	bearer, err := h.service.CreateGame(req.Config, req.HostUsername, req.HostPassword, req.Admins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bearer)
}

func (h *Handler) viewGameInfo(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r, "viewGameInfo", ""); err != nil {
		writeError(w, err)
		return
	}
	info, err := h.service.ViewGameInfo()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) GetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GetGameState()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (h *Handler) ValidateGame(w http.ResponseWriter, r *http.Request) {
	var config GameConfiguration
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	if err := h.service.ValidateGame(config); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *Handler) GetGameHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetGameHistory()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": history})
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req JoinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	bearer, err := h.service.JoinGame(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bearer)
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	if _, err := h.authService.VerifyAccess(req.AccessToken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) RefreshCredentials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	bearer, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bearer)
}

func (h *Handler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	if _, err := h.authorize(r, "leaveGame", req.Username); err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.LeaveGame(req.Username); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	identity, err := h.identify(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := auth.Authorize(identity, "submitTask", identity.Username); err != nil {
		writeError(w, err)
		return
	}
	submission, err := h.service.SubmitTask(identity.Username, req.TaskID, req.Responses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, "startGame", func(string) error { return h.service.StartGame() })
}

func (h *Handler) ViewPlayerInfo(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	if _, err := h.authorize(r, "viewPlayerInfo", req.Username); err != nil {
		writeError(w, err)
		return
	}
	player, err := h.service.ViewPlayerInfo(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (h *Handler) ViewTaskInfo(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	if _, err := h.authorize(r, "viewTaskInfo", ""); err != nil {
		writeError(w, err)
		return
	}
	task, err := h.service.ViewTaskInfo(req.TaskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) KickPlayer(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	h.hostAction(w, r, "kickPlayer", func(string) error { return h.service.KickPlayer(req.Username) })
}

func (h *Handler) KickAllPlayers(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, "kickAllPlayers", func(string) error { return h.service.KickAllPlayers() })
}

func (h *Handler) LockGame(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, "lockGame", func(string) error { return h.service.LockGame() })
}

func (h *Handler) UnlockGame(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, "unlockGame", func(string) error { return h.service.UnlockGame() })
}

func (h *Handler) ViewTaskHostInfo(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	if _, err := h.authorize(r, "viewTaskHostInfo", ""); err != nil {
		writeError(w, err)
		return
	}
	task, err := h.service.ViewTaskHostInfo(req.TaskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) ViewGameHostInfo(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r, "viewGameHostInfo", ""); err != nil {
		writeError(w, err)
		return
	}
	info, err := h.service.ViewGameHostInfo()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) EndGame(w http.ResponseWriter, r *http.Request) {
	h.hostAction(w, r, "endGame", func(string) error { return h.service.EndGame() })
}

func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidInput, "invalid request body"))
		return
	}
	h.hostAction(w, r, "removeAdmin", func(string) error { return h.service.RemoveAdmin(req.Username) })
}

func (h *Handler) hostAction(w http.ResponseWriter, r *http.Request, operation string, action func(username string) error) {
	identity, err := h.authorize(r, operation, "")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := action(identity.Username); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) identify(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return auth.Identity{}, apperr.New(apperr.InvalidAuth, "missing bearer token")
	}
	return h.authService.VerifyAccess(token)
}

func (h *Handler) authorize(r *http.Request, operation, target string) (auth.Identity, error) {
	identity, err := h.identify(r)
	if err != nil {
		return auth.Identity{}, err
	}
	if err := auth.Authorize(identity, operation, target); err != nil {
		return auth.Identity{}, err
	}
	return identity, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.InvalidInput:
		status = http.StatusBadRequest
	case apperr.IllegalState:
		status = http.StatusConflict
	case apperr.InvalidAuth, apperr.ExpiredPermissions:
		status = http.StatusUnauthorized
	case apperr.InvalidPermissions:
		status = http.StatusForbidden
	}

	message := err.Error()
	if kind == apperr.Internal {
		// Don't leak internals; the log has the detail.
		log.Printf("Internal error: %v", err)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"type": string(kind), "message": message})
}
