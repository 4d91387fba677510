package handlers

import (
	"errors"
	"net/http"

	"quiz-session-service/internal/dto"
	"quiz-session-service/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{game.ErrRoomNotFound, http.StatusNotFound},
	{game.ErrRoomClosed, http.StatusGone},
	{game.ErrRoomFull, http.StatusConflict},
	{game.ErrInvalidPassword, http.StatusForbidden},
	{game.ErrNotAuthorized, http.StatusForbidden},
	{game.ErrNotAMember, http.StatusForbidden},
	{game.ErrGameAlreadyStarted, http.StatusConflict},
	{game.ErrPhase, http.StatusConflict},
	{game.ErrGameInProgress, http.StatusConflict},
	{game.ErrNotEnoughPlayers, http.StatusConflict},
	{game.ErrInvalidSettings, http.StatusBadRequest},
	{game.ErrInvalidMessage, http.StatusBadRequest},
	{game.ErrQuizUnavailable, http.StatusBadGateway},
}

func statusFor(err error) int {
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	dto.JsonCodeError(c, status, game.ErrorCode(err), err.Error())
}
