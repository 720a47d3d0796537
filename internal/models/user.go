// Package models содержит доменные структуры магазина рангов: пользователя,
// выданные ранги (entitlements), записи журнала покупок и события
// синхронизации рангов с игровым сервером.
package models

import "time"

// User представляет пользователя магазина, вошедшего через Discord.
type User struct {
	ID                   string    `json:"id"`
	DiscordID            string    `json:"discord_id"`
	Username             string    `json:"username"`
	Email                string    `json:"email,omitempty"`
	Avatar               string    `json:"avatar,omitempty"`
	MinecraftUsername    *string   `json:"minecraft_username"`
	EmailNotifications   bool      `json:"email_notifications"`
	DiscordNotifications bool      `json:"discord_notifications"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DiscordProfile — данные профиля, полученные от Discord после OAuth.
type DiscordProfile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email"`
	Avatar        string `json:"avatar"`
}

// UserSettings — полное обновление настроек профиля.
type UserSettings struct {
	MinecraftUsername    *string `json:"minecraft_username"`
	EmailNotifications   bool    `json:"email_notifications"`
	DiscordNotifications bool    `json:"discord_notifications"`
}

// Preferences — частичное обновление уведомлений, nil означает "не менять".
type Preferences struct {
	EmailNotifications   *bool `json:"email_notifications"`
	DiscordNotifications *bool `json:"discord_notifications"`
}

// Empty сообщает, что ни одно поле не задано.
func (p Preferences) Empty() bool {
	return p.EmailNotifications == nil && p.DiscordNotifications == nil
}
