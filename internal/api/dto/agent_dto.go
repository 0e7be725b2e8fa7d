package dto

// RegisterAgentRequest creates a directory account.
type RegisterAgentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates an agent.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentProfile is the public account projection.
type AgentProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    AgentProfile `json:"user"`
}
