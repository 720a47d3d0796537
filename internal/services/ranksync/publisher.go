// Package ranksync передаёт изменения рангов игровому серверу: публикует
// события в RabbitMQ после покупки и доставляет их на вебхук прокси.
package ranksync

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/rankshop/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/rankshop/internal/models"
)

type publishFunc func(exchange, routingKey string, message any) error

// Publisher публикует RankSyncEvent в обменник синхронизации.
type Publisher struct {
	mu      sync.Mutex
	publish publishFunc
}

// NewPublisher создаёт издателя поверх открытого канала. Канал должен быть
// подготовлен rabbitmq.SetupChannel с очередями rabbitmq.RankSyncQueues.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{
		publish: func(exchange, routingKey string, message any) error {
			return rabbitmq.PublishMessage(ch, exchange, routingKey, message)
		},
	}
}

// Publish отправляет событие. Вызовы сериализуются: канал AMQP не
// допускает параллельной публикации.
func (p *Publisher) Publish(ctx context.Context, ev models.RankSyncEvent) error {
	const op = "ranksync.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.publish(rabbitmq.RankSyncExchange, rabbitmq.RankSyncRoutingKey, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
