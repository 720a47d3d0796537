package models

import "time"

// RankSyncEvent публикуется после успешной покупки, чтобы игровой сервер
// выдал ранг игроку. Revoke заполнен только для апгрейдов.
type RankSyncEvent struct {
	PurchaseID string    `json:"purchase_id"`
	UserID     string    `json:"user_id"`
	Grant      string    `json:"grant"`
	Revoke     string    `json:"revoke,omitempty"`
	Ladder     string    `json:"ladder"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RankSyncWebhook — тело запроса к вебхуку игрового прокси.
type RankSyncWebhook struct {
	Username   string `json:"username"`
	Rank       string `json:"rank"`
	RevokeRank string `json:"revokeRank,omitempty"`
	PurchaseID string `json:"purchaseId"`
}
