package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/rankshop/internal/models"
)

var errNoUser = errors.New("user not found")

// memRepo — хранилище в памяти. Транзакции сериализуются общим мьютексом,
// при ошибке состояние восстанавливается из снимка.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users     map[string]bool
	ranks     map[string]map[string]models.Entitlement
	purchases []models.Purchase
	failOn    map[string]error
	now       func() time.Time
}

func newMemRepo(users ...string) *memRepo {
	r := &memRepo{
		users:  make(map[string]bool),
		ranks:  make(map[string]map[string]models.Entitlement),
		failOn: make(map[string]error),
		now:    time.Now,
	}
	for _, u := range users {
		r.users[u] = true
	}
	return r
}

func (r *memRepo) fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[method] = err
}

func (r *memRepo) injected(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failOn[method]
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapRanks := make(map[string]map[string]models.Entitlement, len(r.ranks))
	for u, m := range r.ranks {
		inner := make(map[string]models.Entitlement, len(m))
		for k, v := range m {
			inner[k] = v
		}
		snapRanks[u] = inner
	}
	snapPurchases := slices.Clone(r.purchases)
	r.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.ranks = snapRanks
		r.purchases = snapPurchases
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) LockUser(_ context.Context, userID string) error {
	if err := r.injected("LockUser"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.users[userID] {
		return errNoUser
	}
	return nil
}

func (r *memRepo) Grant(_ context.Context, e models.Entitlement) error {
	if err := r.injected("Grant"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ranks[e.UserID] == nil {
		r.ranks[e.UserID] = make(map[string]models.Entitlement)
	}
	e.GrantedAt = r.now()
	r.ranks[e.UserID][e.RankName] = e
	return nil
}

func (r *memRepo) Revoke(_ context.Context, userID, rankName string) (int, error) {
	if err := r.injected("Revoke"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ranks[userID][rankName]; !ok {
		return 0, nil
	}
	delete(r.ranks[userID], rankName)
	return 1, nil
}

func (r *memRepo) HoldsActive(_ context.Context, userID, rankName string) (bool, error) {
	if err := r.injected("HoldsActive"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.ranks[userID][rankName]
	return ok && e.ActiveAt(r.now()), nil
}

func (r *memRepo) ListActive(_ context.Context, userID string) ([]models.Entitlement, error) {
	if err := r.injected("ListActive"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Entitlement, 0)
	for _, e := range r.ranks[userID] {
		if e.ActiveAt(r.now()) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RankName < out[j].RankName })
	return out, nil
}

func (r *memRepo) insert(p models.Purchase) *models.Purchase {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	r.purchases = append(r.purchases, p)
	return &p
}

func (r *memRepo) Record(_ context.Context, p models.Purchase) (*models.Purchase, error) {
	if err := r.injected("Record"); err != nil {
		return nil, err
	}
	p.Status = models.PurchasePending
	return r.insert(p), nil
}

func (r *memRepo) RecordFailed(_ context.Context, p models.Purchase) (*models.Purchase, error) {
	if err := r.injected("RecordFailed"); err != nil {
		return nil, err
	}
	p.Status = models.PurchaseFailed
	p.IdempotencyKey = ""
	return r.insert(p), nil
}

func (r *memRepo) MarkStatus(_ context.Context, id string, status models.PurchaseStatus) error {
	if err := r.injected("MarkStatus"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.purchases {
		if r.purchases[i].ID == id {
			if r.purchases[i].Status != models.PurchasePending {
				return errors.New("invalid transition")
			}
			r.purchases[i].Status = status
			return nil
		}
	}
	return errors.New("purchase not found")
}

func (r *memRepo) ListForUser(_ context.Context, userID string) ([]models.Purchase, error) {
	if err := r.injected("ListForUser"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Purchase, 0)
	for i := len(r.purchases) - 1; i >= 0; i-- {
		if r.purchases[i].UserID == userID {
			out = append(out, r.purchases[i])
		}
	}
	return out, nil
}

func (r *memRepo) FindByIdempotencyKey(_ context.Context, userID, key string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.UserID == userID && p.IdempotencyKey == key {
			return &p, nil
		}
	}
	return nil, nil
}

// heldRanks — имена действующих рангов пользователя.
func (r *memRepo) heldRanks(userID string) []string {
	ranks, _ := r.ListActive(context.Background(), userID)
	out := make([]string, 0, len(ranks))
	for _, e := range ranks {
		out = append(out, e.RankName)
	}
	return out
}

type memCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	versions    map[string]int64
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), versions: make(map[string]int64)}
}

func (c *memCache) Get(key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (c *memCache) Set(key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Version(key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[key], nil
}

func (c *memCache) Bump(key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[key]++
	c.invalidated = append(c.invalidated, key)
	return c.versions[key], nil
}

// slowRepo задерживает первый ListActive после чтения из базы, пока тест
// не закроет release.
type slowRepo struct {
	*memRepo
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newSlowRepo(repo *memRepo) *slowRepo {
	return &slowRepo{memRepo: repo, read: make(chan struct{}), release: make(chan struct{})}
}

func (r *slowRepo) ListActive(ctx context.Context, userID string) ([]models.Entitlement, error) {
	ranks, err := r.memRepo.ListActive(ctx, userID)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return ranks, err
}

type memNotifier struct {
	mu     sync.Mutex
	events []models.RankSyncEvent
	err    error
}

func (n *memNotifier) Publish(_ context.Context, ev models.RankSyncEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}

type memMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *memMetrics) ObservePurchase(kind, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, kind+":"+outcome)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}
