package roomdto

type CreateRoomRequest struct {
	Name        string `json:"name,omitempty"`
	TimeControl string `json:"timeControl,omitempty"`
	Color       string `json:"color,omitempty"`
}

type JoinRoomRequest struct {
	Code string `json:"code"`
}

type JoinRoomResponse struct {
	Role string    `json:"role"`
	Room *RoomView `json:"room"`
}

type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Revision  int64  `json:"revision,omitempty"`
}

// DrawRequest.Action is one of "offer", "accept" or "decline".
type DrawRequest struct {
	Action string `json:"action"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

type LegalResponse struct {
	From    string   `json:"from"`
	Targets []string `json:"targets"`
}

type ChatHistoryResponse struct {
	Messages []ChatView `json:"messages"`
}
