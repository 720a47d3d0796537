package rabbitmq

const prefetchCount = 10

// Топология синхронизации рангов с игровым сервером.
const (
	RankSyncExchange   = "ranksync"
	RankSyncQueue      = "ranksync.apply"
	ReceiptQueue       = "ranksync.receipts"
	RankSyncRoutingKey = "rank.changed"
)

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// RankSyncQueues возвращает очереди обменника RankSyncExchange. Каждое
// событие попадает в обе: выдача ранга на сервере и письмо-квитанция.
func RankSyncQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: RankSyncQueue, RoutingKey: RankSyncRoutingKey},
		{QueueName: ReceiptQueue, RoutingKey: RankSyncRoutingKey},
	}
}
