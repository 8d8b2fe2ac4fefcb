package domain

import "time"

// Game represents a registered game owned by an account. Device sessions are
// scoped to a game; the broader game/board/score CRUD lives outside this
// service.
type Game struct {
	ID        string
	AccountID string
	Name      string
	CreatedAt time.Time
	DeletedAt *time.Time
}
