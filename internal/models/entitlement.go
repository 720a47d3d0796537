package models

import "time"

// Entitlement — ранг, выданный пользователю. Пара (UserID, RankName) уникальна.
// ExpiresAt == nil означает бессрочный ранг.
type Entitlement struct {
	UserID      string     `json:"-"`
	RankName    string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Ladder      string     `json:"ladder"`
	Description string     `json:"description"`
	Features    []string   `json:"features"`
	ExpiresAt   *time.Time `json:"expires_at"`
	GrantedAt   time.Time  `json:"granted_at"`
}

// ActiveAt сообщает, действует ли ранг в момент now.
func (e Entitlement) ActiveAt(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}
