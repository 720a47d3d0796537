package purchase

import "errors"

var (
	// ErrInvalidSelection — неизвестный id ранга или апгрейда.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrPriceMismatch — цена клиента не совпадает с ценой каталога.
	ErrPriceMismatch = errors.New("price mismatch")
	// ErrMissingPrerequisite — у пользователя нет ранга, необходимого для покупки.
	ErrMissingPrerequisite = errors.New("missing prerequisite rank")
	// ErrIdempotencyConflict — ключ идемпотентности уже использован для другого товара.
	ErrIdempotencyConflict = errors.New("idempotency key reused for another item")
	// ErrPurchaseFailed — ошибка хранилища во время транзакции покупки.
	ErrPurchaseFailed = errors.New("purchase failed")
)

// IsClientError сообщает, вызвана ли ошибка некорректным запросом клиента.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSelection) ||
		errors.Is(err, ErrPriceMismatch) ||
		errors.Is(err, ErrMissingPrerequisite) ||
		errors.Is(err, ErrIdempotencyConflict)
}
