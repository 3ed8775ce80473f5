package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/quizbattle/quizbattle/internal/answer"
	"github.com/quizbattle/quizbattle/internal/countdown"
	"github.com/quizbattle/quizbattle/internal/match"
	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/questions"
	"github.com/quizbattle/quizbattle/internal/registry"
	"github.com/quizbattle/quizbattle/internal/session"
	"github.com/quizbattle/quizbattle/internal/store"
)

// Handler exposes the match command and subscription surface over HTTP.
type Handler struct {
	controller *match.Controller
	registry   *registry.Registry
	collector  *answer.Collector
	provider   *StateProvider
	adapter    *Adapter
	cm         *ConnectionManager
	store      *store.GameStore

	bank          []models.Question
	hostKey       string
	publicBaseURL string
}

// HandlerConfig wires the handler's collaborators.
type HandlerConfig struct {
	Controller *match.Controller
	Registry   *registry.Registry
	Collector  *answer.Collector
	Provider   *StateProvider
	Adapter    *Adapter
	Manager    *ConnectionManager
	Store      *store.GameStore

	// Bank is the fixed question list new matches are created from.
	Bank []models.Question
	// HostKey is the shared static passphrase gating host commands.
	// Empty disables the gate.
	HostKey string
	// PublicBaseURL, when set, is embedded in join QR codes.
	PublicBaseURL string
}

// NewHandler creates the HTTP handler.
func NewHandler(cfg HandlerConfig) *Handler {
	bank := cfg.Bank
	if len(bank) == 0 {
		bank = questions.Default()
	}
	return &Handler{
		controller:    cfg.Controller,
		registry:      cfg.Registry,
		collector:     cfg.Collector,
		provider:      cfg.Provider,
		adapter:       cfg.Adapter,
		cm:            cfg.Manager,
		store:         cfg.Store,
		bank:          bank,
		hostKey:       cfg.HostKey,
		publicBaseURL: cfg.PublicBaseURL,
	}
}

// RegisterRoutes registers all gateway routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/matches", h.hostAuth(h.handleCreateMatch))
	mux.HandleFunc("POST /api/matches/{id}/start", h.hostAuth(h.handleStart))
	mux.HandleFunc("POST /api/matches/{id}/advance", h.hostAuth(h.handleAdvance))
	mux.HandleFunc("POST /api/matches/{id}/reveal", h.hostAuth(h.handleReveal))
	mux.HandleFunc("POST /api/matches/{id}/end", h.hostAuth(h.handleEnd))
	// Lives outside /api/matches/{id}/... on purpose: a pattern under
	// /api/matches/by-pin/ would overlap the {id} wildcards and ServeMux
	// rejects ambiguous registrations.
	mux.HandleFunc("GET /api/match-by-pin/{pin}", h.hostAuth(h.handleMatchByPin))

	mux.HandleFunc("POST /api/join", h.handleJoin)
	mux.HandleFunc("POST /api/answers", h.handleSubmitAnswer)
	mux.HandleFunc("POST /api/resume", h.handleResume)
	mux.HandleFunc("GET /api/matches/{id}/state", h.handleMatchState)
	mux.HandleFunc("GET /api/matches/{id}/players", h.handleListPlayers)
	mux.HandleFunc("GET /api/matches/{id}/qr", h.handleJoinQR)
	mux.HandleFunc("GET /ws", h.handleWebSocket)

	log.Info().Msg("gateway routes registered")
}

// hostAuth gates host commands behind the shared static passphrase.
func (h *Handler) hostAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.hostKey != "" && r.Header.Get("X-Host-Key") != h.hostKey {
			respondError(w, http.StatusUnauthorized, "invalid host key")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.controller.CreateMatch(r.Context(), h.bank)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"match_id":       m.ID,
		"pin":            m.Pin,
		"question_count": len(m.Questions),
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.controller.StartMatch)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.controller.AdvanceQuestion)
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.controller.RevealQuestion)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.controller.EndMatch)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, matchID string) error) {
	matchID := r.PathValue("id")
	if err := fn(r.Context(), matchID); err != nil {
		respondDomainError(w, err)
		return
	}
	view, err := h.provider.MatchState(r.Context(), matchID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleMatchByPin(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.FindMatchByPin(r.Context(), r.PathValue("pin"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"match_id": m.ID,
		"pin":      m.Pin,
		"phase":    m.Phase,
	})
}

type joinRequest struct {
	Pin    string `json:"pin"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, p, err := h.registry.JoinMatch(r.Context(), req.Pin, req.Name, req.Avatar)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"match_id":  m.ID,
		"player_id": p.ID,
		"pin":       m.Pin,
		"session": session.Descriptor{
			Role:         session.RolePlayer,
			MatchID:      m.ID,
			PlayerID:     p.ID,
			PlayerName:   p.Name,
			Pin:          m.Pin,
			PlayerAvatar: p.Avatar,
		},
	})
}

type answerRequest struct {
	MatchID       string         `json:"match_id"`
	PlayerID      string         `json:"player_id"`
	QuestionIndex int            `json:"question_index"`
	ChoiceIndex   int            `json:"choice_index"`
	Observed      *observedState `json:"observed,omitempty"`
}

// observedState is the submitting client's view of the match at the moment
// it tapped an option. The collector's guard runs against this report, not
// against the authoritative clock: a submission the client believed was in
// time is recorded, and lateness is settled by the score decay instead.
type observedState struct {
	Phase         string `json:"phase"`
	QuestionIndex int    `json:"question_index"`
	RemainingMs   int64  `json:"remaining_ms"`
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var obs answer.Observation
	if req.Observed != nil {
		obs = answer.Observation{
			Phase:         models.Phase(req.Observed.Phase),
			QuestionIndex: req.Observed.QuestionIndex,
			Remaining:     time.Duration(req.Observed.RemainingMs) * time.Millisecond,
		}
	} else {
		// Clients that report no view of their own are judged on the
		// current records.
		m, err := h.store.GetMatch(r.Context(), req.MatchID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		obs = answer.Observation{
			Phase:         m.Phase,
			QuestionIndex: m.CurrentQuestionIndex,
			Remaining:     h.controller.QuestionDuration(),
		}
		if m.QuestionStartAt != nil && m.QuestionStartAt.Resolved {
			obs.Remaining = countdown.Remaining(m.QuestionStartAt.Time(), h.store.Now(), h.controller.QuestionDuration())
		}
	}

	if err := h.collector.Submit(r.Context(), req.MatchID, req.PlayerID, req.QuestionIndex, req.ChoiceIndex, obs); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"recorded": true})
}

// handleResume rehydrates a persisted session descriptor. The descriptor
// carries no authority; the response is simply the current view the
// re-subscribed client will also receive over the websocket.
func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	var d session.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := d.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.provider.MatchState(r.Context(), d.MatchID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := map[string]any{"match": view}
	if d.Role == session.RolePlayer {
		p, err := h.registry.GetPlayer(r.Context(), d.MatchID, d.PlayerID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		resp["player"] = PlayerStateView{
			ID:            p.ID,
			Name:          p.Name,
			Avatar:        p.Avatar,
			Score:         p.Score,
			CurrentAnswer: p.CurrentAnswer,
			LastGain:      p.LastGain,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMatchState(w http.ResponseWriter, r *http.Request) {
	view, err := h.provider.MatchState(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.registry.ListPlayers(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, PlayerView{
			ID:       p.ID,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Score:    p.Score,
			Answered: p.Answered(),
			LastGain: p.LastGain,
		})
	}
	respondJSON(w, http.StatusOK, views)
}

// handleJoinQR renders the match pin as a QR code so players can dial in by
// scanning instead of typing.
func (h *Handler) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	content := m.Pin
	if h.publicBaseURL != "" {
		content = h.publicBaseURL + "/join?pin=" + m.Pin
	}
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Str("match_id", m.ID).Msg("failed to encode join QR")
		respondError(w, http.StatusInternalServerError, "failed to encode QR")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleWebSocket subscribes a client session to a match. Players also get
// their private record stream. Reconnects carry the same query parameters
// from the persisted session descriptor.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match_id")
	role := session.Role(r.URL.Query().Get("role"))
	playerID := r.URL.Query().Get("player_id")

	d := session.Descriptor{Role: role, MatchID: matchID, PlayerID: playerID}
	if err := d.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.store.GetMatch(r.Context(), matchID); err != nil {
		respondDomainError(w, err)
		return
	}
	if role == session.RolePlayer {
		if _, err := h.store.GetPlayer(r.Context(), matchID, playerID); err != nil {
			respondDomainError(w, err)
			return
		}
	}

	conn, err := h.cm.UpgradeConnection(w, r, role, playerID, matchID)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID).Msg("failed to upgrade websocket connection")
		return
	}
	if err := h.adapter.ServeConnection(conn); err != nil {
		log.Error().Err(err).Str("match_id", matchID).Msg("failed to serve connection")
		conn.Conn.Close()
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondDomainError maps domain sentinels onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, store.ErrMatchNotFound),
		errors.Is(err, store.ErrPlayerNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrValidation),
		errors.Is(err, answer.ErrChoiceOutOfRange):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, answer.ErrQuestionClosed):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
