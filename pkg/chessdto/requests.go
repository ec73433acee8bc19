package chessdto

type SelectRequest struct {
	Square string `json:"square"`
}

type SelectResponse struct {
	Outcome string        `json:"outcome"`
	State   *SessionState `json:"state"`
}

type PromoteRequest struct {
	Piece string `json:"piece"`
}

type MoveRequest struct {
	Move string `json:"move"`
}

type ColorRequest struct {
	Color string `json:"color,omitempty"`
}

type LoadRequest struct {
	FEN   string `json:"fen"`
	Color string `json:"color,omitempty"`
}

type ViewRequest struct {
	Index int `json:"index"`
}

// SetupRequest describes an edited board. Pieces maps squares to FEN
// letters, e.g. {"e1": "K"}.
type SetupRequest struct {
	Pieces     map[string]string `json:"pieces"`
	SideToMove string            `json:"side_to_move"`
	WhiteShort bool              `json:"white_short"`
	WhiteLong  bool              `json:"white_long"`
	BlackShort bool              `json:"black_short"`
	BlackLong  bool              `json:"black_long"`
	EnPassant  string            `json:"en_passant,omitempty"`
}

type SetupResponse struct {
	FEN    string `json:"fen"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type StartResponse struct {
	State   *SessionState `json:"state"`
	Resumed bool          `json:"resumed"`
}

type HistoryResponse struct {
	Games []*ChessGame `json:"games"`
}

type GameResponse struct {
	Game *ChessGame `json:"game"`
}

type ProfileResponse struct {
	Profile *ChessProfile `json:"profile"`
}
