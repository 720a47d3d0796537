package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rankshop/internal/catalog"
	"github.com/magabrotheeeer/rankshop/internal/models"
)

const userID = "6f1c7f7e-1d0a-4c1e-9b43-2b6a2d0c1a11"

type fixture struct {
	repo     *memRepo
	cache    *memCache
	notifier *memNotifier
	metrics  *memMetrics
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemRepo(userID),
		cache:    newMemCache(),
		notifier: &memNotifier{},
		metrics:  &memMetrics{},
	}
	f.svc = New(f.repo, catalog.Default(), f.cache, f.notifier, f.metrics, newNoopLogger())
	return f
}

func (f *fixture) grant(t *testing.T, rankID string) {
	t.Helper()
	require.NoError(t, f.repo.Grant(context.Background(), models.Entitlement{UserID: userID, RankName: rankID}))
}

func TestPurchaseRank_Citizen(t *testing.T) {
	f := newFixture(t)

	err := f.svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: 499})
	require.NoError(t, err)

	ranks, err := f.svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, "citizen", ranks[0].RankName)
	assert.Equal(t, "Citizen", ranks[0].DisplayName)
	assert.Equal(t, []string{"Create town", "Claim 5 town plots", "Set 1 town spawn"}, ranks[0].Features)
	assert.Nil(t, ranks[0].ExpiresAt)

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "citizen", history[0].RankName)
	assert.Equal(t, models.Money(499), history[0].Price)
	assert.Equal(t, models.PurchaseCompleted, history[0].Status)
	assert.Equal(t, models.KindRank, history[0].Kind)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "citizen", f.notifier.events[0].Grant)
	assert.Empty(t, f.notifier.events[0].Revoke)
	assert.Equal(t, "towny", f.notifier.events[0].Ladder)
	assert.Equal(t, history[0].ID, f.notifier.events[0].PurchaseID)

	assert.Contains(t, f.cache.invalidated, ranksVersionKey(userID))
	assert.Equal(t, []string{"rank:completed"}, f.metrics.outcomes)
}

func TestPurchaseRank_ClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "unknown rank",
			req:     Request{UserID: userID, ItemID: "emperor", Price: 499},
			wantErr: ErrInvalidSelection,
		},
		{
			name:    "wrong price",
			req:     Request{UserID: userID, ItemID: "citizen", Price: 99},
			wantErr: ErrPriceMismatch,
		},
		{
			name:    "price of another rank",
			req:     Request{UserID: userID, ItemID: "citizen", Price: 999},
			wantErr: ErrPriceMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			err := f.svc.PurchaseRank(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, errors.Is(err, ErrPurchaseFailed))

			assert.Empty(t, f.repo.heldRanks(userID))
			history, err := f.svc.ListPurchases(context.Background(), userID)
			require.NoError(t, err)
			assert.Empty(t, history)
			assert.Empty(t, f.notifier.events)
			assert.Equal(t, []string{"rank:rejected"}, f.metrics.outcomes)
		})
	}
}

func TestPurchaseRank_RepeatDoesNotDuplicateEntitlement(t *testing.T) {
	f := newFixture(t)
	req := Request{UserID: userID, ItemID: "citizen", Price: 499}

	require.NoError(t, f.svc.PurchaseRank(context.Background(), req))
	require.NoError(t, f.svc.PurchaseRank(context.Background(), req))

	assert.Equal(t, []string{"citizen"}, f.repo.heldRanks(userID))

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPurchaseRank_RequiresRank(t *testing.T) {
	cat, err := catalog.New([]catalog.Rank{
		{ID: "citizen", Name: "Citizen", Ladder: catalog.LadderTowny, Tier: 1, Price: 499},
		{ID: "mayor-plus", Name: "Mayor+", Ladder: catalog.LadderTowny, Tier: 2, Price: 999, RequiresRank: "citizen"},
	}, nil)
	require.NoError(t, err)

	repo := newMemRepo(userID)
	svc := New(repo, cat, nil, nil, nil, newNoopLogger())

	err = svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "mayor-plus", Price: 999})
	require.ErrorIs(t, err, ErrMissingPrerequisite)

	require.NoError(t, svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: 499}))
	require.NoError(t, svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "mayor-plus", Price: 999}))
	assert.ElementsMatch(t, []string{"citizen", "mayor-plus"}, repo.heldRanks(userID))
}

func TestPurchaseRank_WithDurationSetsExpiry(t *testing.T) {
	cat, err := catalog.New([]catalog.Rank{
		{ID: "vip", Name: "VIP", Ladder: catalog.LadderServerwide, Tier: 1, Price: 100, Duration: 30 * 24 * time.Hour},
	}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo(userID)
	repo.now = func() time.Time { return now }
	svc := New(repo, cat, nil, nil, nil, newNoopLogger())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "vip", Price: 100}))

	ranks, err := svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	require.NotNil(t, ranks[0].ExpiresAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *ranks[0].ExpiresAt)

	// через 31 день ранг истёк и больше не виден
	repo.now = func() time.Time { return now.Add(31 * 24 * time.Hour) }
	svc.now = repo.now
	ranks, err = svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, ranks)
}

func TestPurchaseRank_StoreFailureRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{name: "lock fails", method: "LockUser"},
		{name: "ledger insert fails", method: "Record"},
		{name: "grant fails", method: "Grant"},
		{name: "status update fails", method: "MarkStatus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.fail(tt.method, errors.New("connection reset"))

			err := f.svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: 499})
			require.ErrorIs(t, err, ErrPurchaseFailed)

			assert.Empty(t, f.repo.heldRanks(userID))

			history, err := f.svc.ListPurchases(context.Background(), userID)
			require.NoError(t, err)
			require.Len(t, history, 1, "only the failure audit row remains")
			assert.Equal(t, models.PurchaseFailed, history[0].Status)
			assert.Equal(t, "citizen", history[0].RankName)

			assert.Empty(t, f.notifier.events)
			assert.Empty(t, f.cache.invalidated)
			assert.Equal(t, []string{"rank:failed"}, f.metrics.outcomes)
		})
	}
}

func TestPurchaseRank_FailureRecordAlsoFails(t *testing.T) {
	f := newFixture(t)
	f.repo.fail("Grant", errors.New("db down"))
	f.repo.fail("RecordFailed", errors.New("db down"))

	err := f.svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: 499})
	require.ErrorIs(t, err, ErrPurchaseFailed)

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPurchaseRank_NotifierErrorDoesNotFailPurchase(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker unavailable")

	err := f.svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: 499})
	require.NoError(t, err)
	assert.Equal(t, []string{"citizen"}, f.repo.heldRanks(userID))
}

func TestPurchaseUpgrade_CitizenToMerchant(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "citizen")

	err := f.svc.PurchaseUpgrade(context.Background(), Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499})
	require.NoError(t, err)

	assert.Equal(t, []string{"merchant"}, f.repo.heldRanks(userID))

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "merchant", history[0].RankName)
	assert.Equal(t, models.KindUpgrade, history[0].Kind)
	assert.Equal(t, "citizen-to-merchant", history[0].ItemID)
	assert.Equal(t, models.Money(499), history[0].Price)
	assert.Equal(t, models.PurchaseCompleted, history[0].Status)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "merchant", f.notifier.events[0].Grant)
	assert.Equal(t, "citizen", f.notifier.events[0].Revoke)
}

func TestPurchaseUpgrade_ClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		held    []string
		req     Request
		wantErr error
	}{
		{
			name:    "unknown upgrade",
			held:    []string{"citizen"},
			req:     Request{UserID: userID, ItemID: "citizen-to-king", Price: 499},
			wantErr: ErrInvalidSelection,
		},
		{
			name:    "missing prerequisite",
			req:     Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499},
			wantErr: ErrMissingPrerequisite,
		},
		{
			name:    "prerequisite from the other ladder",
			held:    []string{"shadow-enchanter"},
			req:     Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499},
			wantErr: ErrMissingPrerequisite,
		},
		{
			name:    "missing prerequisite reported before wrong price",
			req:     Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 1},
			wantErr: ErrMissingPrerequisite,
		},
		{
			name:    "wrong price",
			held:    []string{"citizen"},
			req:     Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 999},
			wantErr: ErrPriceMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, r := range tt.held {
				f.grant(t, r)
			}

			err := f.svc.PurchaseUpgrade(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			assert.ElementsMatch(t, tt.held, f.repo.heldRanks(userID))
			history, err := f.svc.ListPurchases(context.Background(), userID)
			require.NoError(t, err)
			assert.Empty(t, history)
			assert.Empty(t, f.notifier.events)
		})
	}
}

func TestPurchaseUpgrade_StoreFailureKeepsSourceRank(t *testing.T) {
	for _, method := range []string{"Revoke", "Grant", "MarkStatus"} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			f.grant(t, "citizen")
			f.repo.fail(method, errors.New("statement timeout"))

			err := f.svc.PurchaseUpgrade(context.Background(), Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499})
			require.ErrorIs(t, err, ErrPurchaseFailed)

			assert.Equal(t, []string{"citizen"}, f.repo.heldRanks(userID))
			history, err := f.svc.ListPurchases(context.Background(), userID)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, models.PurchaseFailed, history[0].Status)
		})
	}
}

func TestPurchaseUpgrade_ConcurrentCallsTransitionOnce(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "citizen")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.PurchaseUpgrade(context.Background(),
				Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrMissingPrerequisite)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"merchant"}, f.repo.heldRanks(userID))

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	req := Request{UserID: userID, ItemID: "citizen", Price: 499, IdempotencyKey: "order-1"}

	require.NoError(t, f.svc.PurchaseRank(context.Background(), req))
	require.NoError(t, f.svc.PurchaseRank(context.Background(), req))

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, f.notifier.events, 1)

	err = f.svc.PurchaseRank(context.Background(),
		Request{UserID: userID, ItemID: "merchant", Price: 999, IdempotencyKey: "order-1"})
	require.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestIdempotencyKey_UpgradeReplayAfterTransition(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "citizen")
	req := Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499, IdempotencyKey: "up-1"}

	require.NoError(t, f.svc.PurchaseUpgrade(context.Background(), req))
	// citizen уже снят, но повтор с тем же ключом — успех без изменений
	require.NoError(t, f.svc.PurchaseUpgrade(context.Background(), req))

	assert.Equal(t, []string{"merchant"}, f.repo.heldRanks(userID))
	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestListRanks_CacheFiltersExpired(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.NoError(t, f.cache.Set(ranksCacheKey(userID, 0), []models.Entitlement{
		{RankName: "citizen", ExpiresAt: &past},
		{RankName: "void-walker", ExpiresAt: &future},
		{RankName: "shadow-enchanter"},
	}, time.Minute))

	ranks, err := f.svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)

	names := make([]string, 0, len(ranks))
	for _, r := range ranks {
		names = append(names, r.RankName)
	}
	assert.Equal(t, []string{"void-walker", "shadow-enchanter"}, names)
}

func TestListRanks_ReadRacingUpgradeDoesNotCacheStaleRanks(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "citizen")
	slow := newSlowRepo(f.repo)
	svc := New(slow, catalog.Default(), f.cache, f.notifier, f.metrics, newNoopLogger())

	done := make(chan []models.Entitlement)
	go func() {
		ranks, err := svc.ListRanks(context.Background(), userID)
		assert.NoError(t, err)
		done <- ranks
	}()

	<-slow.read
	require.NoError(t, svc.PurchaseUpgrade(context.Background(), Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499}))
	close(slow.release)

	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, "citizen", stale[0].RankName)

	ranks, err := svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, "merchant", ranks[0].RankName)
}

func TestListRanks_CachedUntilPurchase(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "citizen")

	_, err := f.svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	// прямое изменение в базе не видно, пока жив снимок
	f.grant(t, "void-walker")
	ranks, err := f.svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, ranks, 1)

	require.NoError(t, f.svc.PurchaseUpgrade(context.Background(), Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499}))
	ranks, err = f.svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	names := make([]string, 0, len(ranks))
	for _, r := range ranks {
		names = append(names, r.RankName)
	}
	assert.ElementsMatch(t, []string{"merchant", "void-walker"}, names)
}

func TestPurchaseRank_OverflowingPriceRejected(t *testing.T) {
	f := newFixture(t)

	var body struct {
		Price models.Money `json:"price"`
	}
	err := json.Unmarshal([]byte(`{"price":4611686018427387908.99}`), &body)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	for _, price := range []models.Money{math.MaxInt64, math.MinInt64, 499 + 1<<62} {
		err := f.svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: price})
		require.ErrorIs(t, err, ErrPriceMismatch)
	}
	assert.Empty(t, f.repo.heldRanks(userID))
}

func TestListRanks_StoreError(t *testing.T) {
	f := newFixture(t)
	f.repo.fail("ListActive", errors.New("boom"))

	_, err := f.svc.ListRanks(context.Background(), userID)
	require.Error(t, err)
}

func TestListRanks_RevokeUnheldIsNoop(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "citizen")

	n, err := f.repo.Revoke(context.Background(), userID, "merchant")
	require.NoError(t, err)
	assert.Zero(t, n)

	ranks, err := f.svc.ListRanks(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, "citizen", ranks[0].RankName)
}

func TestListPurchases_NewestFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.PurchaseRank(context.Background(), Request{UserID: userID, ItemID: "citizen", Price: 499}))
	require.NoError(t, f.svc.PurchaseUpgrade(context.Background(), Request{UserID: userID, ItemID: "citizen-to-merchant", Price: 499}))

	history, err := f.svc.ListPurchases(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "merchant", history[0].RankName)
	assert.Equal(t, "citizen", history[1].RankName)
}
