package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
	"github.com/wricardo/quizler/transport/websocket"
)

// maxBodyBytes bounds request bodies; quiz banks are the largest payload.
const maxBodyBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *zap.Logger
}

// NewServer creates a new API server. hub may be nil, in which case /ws
// answers 503.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Games
	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{token}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{token}", s.handleEndGame).Methods("DELETE")

	// Quiz banks
	api.HandleFunc("/quizzes", s.handleListQuizzes).Methods("GET")
	api.HandleFunc("/quizzes", s.handleSaveQuiz).Methods("POST")
	api.HandleFunc("/quizzes/{id}", s.handleGetQuiz).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router so callers can mount extra handlers.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrGameNotFound), errors.Is(err, service.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidQuiz):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Game Handlers

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGameRequest

	// An empty body creates a game of the default quiz
	if r.Body != nil {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.MaxPlayers < 0 {
		respondError(w, http.StatusBadRequest, "max_players must not be negative")
		return
	}

	game, err := s.service.CreateGame(r.Context(), req)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	s.logger.Info("game created via api",
		zap.String("token", game.Token),
		zap.String("quiz", game.QuizID))
	respondJSON(w, http.StatusCreated, game)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListGames(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total := len(games)

	// Parse query parameters
	query := r.URL.Query()
	phase := query.Get("state")    // only games in this phase
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of games to return

	if order == "" {
		order = "desc"
	}

	if phase != "" {
		filtered := games[:0]
		for _, g := range games {
			if strings.EqualFold(string(g.State.Phase), phase) {
				filtered = append(filtered, g)
			}
		}
		games = filtered
	}

	sort.Slice(games, func(i, j int) bool {
		ti, tj := games[i].CreatedAt, games[j].CreatedAt
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	// Apply limit if specified
	limit := len(games)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(games) {
			limit = l
		}
	}
	games = games[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(games),
		"total": total,
		"games": games,
		"order": order,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	game, err := s.service.GetGame(r.Context(), token)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := s.service.EndGame(r.Context(), token); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	s.logger.Info("game ended via api", zap.String("token", token))
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Game %s ended", strings.ToUpper(token)),
	})
}

// Quiz Handlers

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.service.ListQuizzes(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, quizzes)
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Accept file names as well as ids
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		id = strings.TrimSuffix(id, ext)
	}

	q, err := s.service.LoadQuiz(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleSaveQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuizID string     `json:"quiz_id"`
		Quiz   *quiz.Quiz `json:"quiz"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate required fields
	if req.QuizID == "" {
		respondError(w, http.StatusBadRequest, "quiz_id is required")
		return
	}
	if req.Quiz == nil {
		respondError(w, http.StatusBadRequest, "quiz is required")
		return
	}

	if err := s.service.SaveQuiz(r.Context(), req.QuizID, req.Quiz); err != nil {
		respondError(w, statusFor(err), fmt.Sprintf("Failed to save quiz: %v", err))
		return
	}

	s.logger.Info("quiz saved via api", zap.String("quiz", req.QuizID))
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Quiz saved successfully",
		"quiz_id": req.QuizID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket transport unavailable", http.StatusServiceUnavailable)
		return
	}
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "healthy",
	}
	if games, err := s.service.ListGames(r.Context()); err == nil {
		resp["games"] = len(games)
	}
	if s.hub != nil {
		resp["connections"] = s.hub.Count()
	}
	respondJSON(w, http.StatusOK, resp)
}
