package room

// GameError is a recoverable rejection reported to the calling connection
// only. Type is the stable tag clients switch on.
type GameError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *GameError) Error() string {
	return e.Type + ": " + e.Message
}

// Is matches on Type so a GameError with a custom message still matches its
// sentinel.
func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	return ok && t.Type == e.Type
}

var (
	ErrRoomNotExist   = &GameError{Type: "ROOM_NOT_EXIST", Message: "Room does not exist"}
	ErrRoomFull       = &GameError{Type: "ROOM_FULL", Message: "Room is full"}
	ErrGameInProgress = &GameError{Type: "GAME_IN_PROGRESS", Message: "Game is already in progress"}
	ErrUnauthorized   = &GameError{Type: "UNAUTHORIZED", Message: "Only the host can do that"}
	ErrNotInRoom      = &GameError{Type: "NOT_IN_ROOM", Message: "You are not in this room"}
	ErrInvalidConfig  = &GameError{Type: "INVALID_CONFIG", Message: "Invalid game config"}
)

func invalidConfig(msg string) *GameError {
	return &GameError{Type: ErrInvalidConfig.Type, Message: msg}
}
