package game

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrInvalidPassword    = errors.New("invalid room password")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrNotAMember         = errors.New("player is not a member of this room")
	ErrPhase              = errors.New("operation not allowed in the current phase")
	ErrRoomClosed         = errors.New("room is closed")
	ErrGameInProgress     = errors.New("setting cannot change while a game is in progress")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrInvalidSettings    = errors.New("invalid room settings")
	ErrInvalidMessage     = errors.New("invalid chat message")
	ErrQuizUnavailable    = errors.New("quiz content unavailable")

	// errNoChange aborts a store write without failing the operation.
	errNoChange = errors.New("no change")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrRoomFull, "room_full"},
	{ErrInvalidPassword, "invalid_password"},
	{ErrGameAlreadyStarted, "game_already_started"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrNotAMember, "not_a_member"},
	{ErrPhase, "phase_error"},
	{ErrRoomClosed, "room_closed"},
	{ErrGameInProgress, "game_in_progress"},
	{ErrNotEnoughPlayers, "not_enough_players"},
	{ErrInvalidSettings, "invalid_settings"},
	{ErrInvalidMessage, "invalid_message"},
	{ErrQuizUnavailable, "quiz_unavailable"},
}

// ErrorCode maps engine errors to stable codes for clients.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal_error"
}
