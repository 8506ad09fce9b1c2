package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/services"

	"github.com/go-chi/chi/v5"
)

type PlayerHandler struct {
	playerService services.PlayerService
}

func NewPlayerHandler(ps services.PlayerService) *PlayerHandler {
	return &PlayerHandler{
		playerService: ps,
	}
}

// Verify заводит игрока после одобрения заявки на верификацию.
func (h *PlayerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ExternalID string `json:"external_id"`
		Nickname   string `json:"nickname"`
	}

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.ExternalID == "" || input.Nickname == "" {
		badRequestResponse(w, r, errors.New("external_id and nickname are required"))
		return
	}

	player, err := h.playerService.Verify(r.Context(), input.ExternalID, input.Nickname)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"player": player,
	}

	err = writeJSON(w, http.StatusCreated, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) GetByNickname(w http.ResponseWriter, r *http.Request) {
	nickname, err := getNicknameFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.GetByNickname(r.Context(), nickname)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"player": player,
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Leaderboard возвращает топ игроков. Режим задаётся query-параметром
// mode (0 — общий рейтинг), лимит — limit.
func (h *PlayerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	mode := models.ModeAny
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		parsed, err := strconv.Atoi(modeStr)
		if err != nil || !models.Mode(parsed).Valid() {
			badRequestResponse(w, r, errors.New("invalid mode value"))
			return
		}
		mode = models.Mode(parsed)
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			badRequestResponse(w, r, errors.New("invalid limit value"))
			return
		}
		limit = parsed
	}

	players, err := h.playerService.Leaderboard(r.Context(), mode, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"mode":    mode.String(),
		"players": players,
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	nickname, err := getNicknameFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Banned bool `json:"banned"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.playerService.SetBanned(r.Context(), nickname, input.Banned); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"nickname": nickname,
		"banned":   input.Banned,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) SetBlacklisted(w http.ResponseWriter, r *http.Request) {
	nickname, err := getNicknameFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Blacklisted bool `json:"blacklisted"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.playerService.SetBlacklisted(r.Context(), nickname, input.Blacklisted); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"nickname":    nickname,
		"blacklisted": input.Blacklisted,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) Purge(w http.ResponseWriter, r *http.Request) {
	nickname, err := getNicknameFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	err = h.playerService.Purge(r.Context(), nickname)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"message": "player and their match history deleted",
	}

	err = writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func getNicknameFromURL(r *http.Request) (string, error) {
	nickname := chi.URLParam(r, "nickname")
	if nickname == "" {
		return "", errors.New("missing player nickname in URL path")
	}
	return nickname, nil
}
