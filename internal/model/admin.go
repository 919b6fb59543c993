package model

import (
	"encoding/json"
	"time"
)

// Envelope is the shape of every backend response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Moderator struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporterId"`
	ReportedID string    `json:"reportedId"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Resolution struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Stats struct {
	TotalUsers          int            `json:"totalUsers"`
	ActiveUsers         int            `json:"activeUsers"`
	NewUsersToday       int            `json:"newUsersToday"`
	Matches             int            `json:"matches"`
	PendingReports      int            `json:"pendingReports"`
	ActiveSubscriptions int            `json:"activeSubscriptions"`
	Revenue             float64        `json:"revenue"`
	SignupsByDay        map[string]int `json:"signupsByDay,omitempty"`
}
