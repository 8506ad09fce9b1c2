package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/elobot/ladder-system/services"

	"github.com/go-chi/chi/v5"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
	}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name  string `json:"name"`
		Slots int    `json:"slots"`
	}

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.Name == "" {
		badRequestResponse(w, r, errors.New("tournament name is required"))
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), input.Name, input.Slots)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"tournament": tournament,
	}

	err = writeJSON(w, http.StatusCreated, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getTournamentIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, participants, err := h.tournamentService.Get(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"tournament":   tournament,
		"participants": participants,
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getTournamentIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		PlayerID int    `json:"player_id"`
		Nickname string `json:"nickname"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID <= 0 || input.Nickname == "" {
		badRequestResponse(w, r, errors.New("player_id and nickname are required"))
		return
	}

	err = h.tournamentService.Register(r.Context(), tournamentID, input.PlayerID, input.Nickname)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"tournament_id": tournamentID,
		"nickname":      input.Nickname,
	}

	err = writeJSON(w, http.StatusCreated, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.participantAction(w, r, h.tournamentService.Unregister, "player unregistered")
}

// Ban исключает участника решением модератора. После старта турнира его
// незавершённый матч закрывается как walkover в пользу соперника.
func (h *TournamentHandler) Ban(w http.ResponseWriter, r *http.Request) {
	h.participantAction(w, r, h.tournamentService.Ban, "player banned from the tournament")
}

func (h *TournamentHandler) participantAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, tournamentID, playerID int) error,
	message string,
) {
	tournamentID, err := getTournamentIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	playerIDStr := chi.URLParam(r, "playerID")
	playerID, err := strconv.Atoi(playerIDStr)
	if err != nil || playerID <= 0 {
		badRequestResponse(w, r, errors.New("invalid player ID value"))
		return
	}

	if err := action(r.Context(), tournamentID, playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"tournament_id": tournamentID,
		"player_id":     playerID,
		"message":       message,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getTournamentIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	err = h.tournamentService.Start(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"tournament_id": tournamentID,
		"message":       "tournament started",
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Bracket — текущее состояние сетки активного турнира.
func (h *TournamentHandler) Bracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getTournamentIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, ok := h.tournamentService.BracketState(tournamentID)
	if !ok {
		notFoundResponse(w, r)
		return
	}

	response := jsonResponse{
		"bracket": state,
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetWinner — ручное решение модератора по матчу сетки.
func (h *TournamentHandler) SetWinner(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getTournamentIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matchID, err := getMatchIDFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Winner string `json:"winner"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Winner == "" {
		badRequestResponse(w, r, errors.New("winner nickname is required"))
		return
	}

	err = h.tournamentService.SetMatchWinner(r.Context(), tournamentID, matchID, input.Winner)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"tournament_id": tournamentID,
		"match_id":      matchID,
		"winner":        input.Winner,
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func getTournamentIDFromURL(r *http.Request) (int, error) {
	idStr := chi.URLParam(r, "tournamentID")
	if idStr == "" {
		return 0, errors.New("missing tournament ID in URL path")
	}

	tournamentID, err := strconv.Atoi(idStr)
	if err != nil || tournamentID <= 0 {
		return 0, errors.New("invalid tournament ID value")
	}

	return tournamentID, nil
}
