package model

import "time"

type Goal struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user"`
	Title         string    `json:"title"`
	TargetAmount  float64   `json:"target_amount"`
	CurrentAmount float64   `json:"current_amount"`
	Deadline      *string   `json:"deadline"`
	CreatedAt     time.Time `json:"created_at"`
	IsCompleted   bool      `json:"is_completed"`
}
