package models

import "time"

// PurchaseStatus — статус записи в журнале покупок.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

// Terminal сообщает, что из статуса нет переходов.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseCompleted || s == PurchaseFailed
}

// PurchaseKind различает покупку ранга и апгрейд.
type PurchaseKind string

const (
	KindRank    PurchaseKind = "rank"
	KindUpgrade PurchaseKind = "upgrade"
)

// Purchase — запись журнала покупок.
type Purchase struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	RankName       string         `json:"rank_name"`
	Kind           PurchaseKind   `json:"kind"`
	ItemID         string         `json:"item_id"`
	Price          Money          `json:"price"`
	Status         PurchaseStatus `json:"status"`
	IdempotencyKey string         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
