package domain

import "time"

// Agent is the in-memory presence record for a human support agent.
// Created on first presence announcement, never removed (soft-offline only).
type Agent struct {
	Email                 string   `json:"identity"`
	Online                bool     `json:"online"`
	Load                  int      `json:"load"`
	AssignedConversations []string `json:"conversation_ids"`

	// RegisteredAt orders candidates for the deterministic tie-break in
	// assignment: equal-load agents keep first-registered priority.
	RegisteredAt int
}

// AgentAccount is the persistent directory record backing registration
// and login. Presence and load never touch the directory.
type AgentAccount struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
