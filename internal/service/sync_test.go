package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/profile"
	"github.com/d60-Lab/fansync/internal/upstream"
)

func seedUpstream(up *fakeUpstream) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	up.active = []upstream.Fan{
		{ID: 1, Name: "🔥alice smith", Username: "alice"},
		{ID: 2, Name: "bob", Username: "bob"},
	}
	up.expired = []upstream.Fan{
		{ID: 3, Name: "carol", Username: "carol"},
		{ID: 2, Name: "bob", Username: "bob"},
	}
	up.chats = []upstream.Chat{{ID: 1}, {ID: 2}, {ID: 3}}
	up.messages[1] = []upstream.Message{
		{ID: 101, Text: "hello there", CreatedAt: base},
		{ID: 102, Text: "thanks babe", IsOpened: true, CreatedAt: base.Add(time.Minute)},
	}
	up.messages[2] = []upstream.Message{{ID: 201, Text: "hey", CreatedAt: base}}
	up.messages[3] = []upstream.Message{{ID: 301, Text: "bye", CreatedAt: base}}
	up.txns = []upstream.Transaction{
		{ID: 11, UserID: uid(1), Description: "Tip from alice", Amount: 150, Date: base},
		{ID: 12, UserID: uid(2), Description: "Monthly rebill", Amount: 9.99, Date: base},
		{ID: 13, Description: "Bundle purchase", Amount: 20, Date: base},
	}
}

func TestFullSyncStoresEverything(t *testing.T) {
	e := setupEnv(t)
	seedUpstream(e.up)
	ctx := context.Background()

	require.NoError(t, e.syncer(0).FullSync(ctx, 0))

	fan, err := e.fans.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", fan.DisplayName)
	assert.Equal(t, model.StatusActive, fan.SubscriptionStatus)
	require.NotNil(t, fan.CharacterProfile)
	assert.Contains(t, *fan.CharacterProfile, `"tip_count":1`)

	bob, err := e.fans.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, bob.SubscriptionStatus, "fan in both lists counts as active")

	carol, err := e.fans.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, carol.SubscriptionStatus)

	msgs, err := e.msgs.ListByFan(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.DirectionIn, msgs[0].Direction)
	assert.Equal(t, model.DirectionOut, msgs[1].Direction)

	txns, err := e.txns.ListByFan(ctx, 2)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnSubscription, txns[0].Type)

	entries, err := e.log.All(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.True(t, strings.HasSuffix(entries[0], "Starting full sync..."))
	assert.Contains(t, strings.Join(entries, "\n"), "Fetched 2 active fans, 2 expired fans")
	assert.Contains(t, strings.Join(entries, "\n"), "Inserted 4 messages, 3 transactions")
	assert.Contains(t, entries[len(entries)-1], "Sync complete (")
	assert.Equal(t, 1, e.cache.invalidated)
}

func TestFullSyncIsIdempotent(t *testing.T) {
	e := setupEnv(t)
	seedUpstream(e.up)
	ctx := context.Background()
	s := e.syncer(0)

	require.NoError(t, s.FullSync(ctx, 0))
	msgCount, err := e.msgs.Count(ctx)
	require.NoError(t, err)
	txnCount, err := e.txns.Count(ctx)
	require.NoError(t, err)

	require.NoError(t, s.FullSync(ctx, 0))
	again, err := e.msgs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, msgCount, again)
	againTxn, err := e.txns.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, txnCount, againTxn)

	entries, err := e.log.All(ctx)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(entries, "\n"), "Inserted 0 messages, 0 transactions")
}

func TestFullSyncLimitRestrictsWorkingSet(t *testing.T) {
	e := setupEnv(t)
	seedUpstream(e.up)
	ctx := context.Background()

	require.NoError(t, e.syncer(0).FullSync(ctx, 1))

	_, err := e.fans.Get(ctx, 1)
	require.NoError(t, err)
	_, err = e.fans.Get(ctx, 2)
	assert.Error(t, err)

	count, err := e.msgs.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "only chats of the working set are ingested")
}

func TestFullSyncWithoutAccountIsNoop(t *testing.T) {
	e := setupEnv(t)
	seedUpstream(e.up)
	e.up.accounts = nil
	ctx := context.Background()

	require.NoError(t, e.syncer(0).FullSync(ctx, 0))
	count, err := e.msgs.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFullSyncAbortsOnDisplayNameFailure(t *testing.T) {
	e := setupEnv(t)
	seedUpstream(e.up)
	ctx := context.Background()

	s := e.syncer(0)
	s.fans = NewFanUpserter(e.fans, failingNamer{})

	err := s.FullSync(ctx, 0)
	require.ErrorIs(t, err, ErrGeneration)

	_, err = e.fans.Get(ctx, 1)
	assert.Error(t, err, "fan must not be written without a display name")

	entries, _ := e.log.All(ctx)
	assert.Contains(t, entries[len(entries)-1], "Sync failed")
}

func TestRefreshFan(t *testing.T) {
	e := setupEnv(t)
	seedUpstream(e.up)
	e.up.users[1] = upstream.Fan{ID: 1, Name: "alice", Username: "alice", SubscriptionStatus: "active"}
	ctx := context.Background()

	require.NoError(t, e.syncer(0).RefreshFan(ctx, 1))

	fan, err := e.fans.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, fan.SubscriptionStatus)
	require.NotNil(t, fan.CharacterProfile)

	msgs, err := e.msgs.ListByFan(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	txns, err := e.txns.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, txns, "only the refreshed fan's transactions are stored")
}

func TestRefreshFanUpstreamError(t *testing.T) {
	e := setupEnv(t)
	err := e.syncer(0).RefreshFan(context.Background(), 42)
	require.Error(t, err)
}

func TestBackfillPaginatesAscending(t *testing.T) {
	e := setupEnv(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		e.up.messages[5] = append(e.up.messages[5], upstream.Message{
			ID:        upstream.Int64(5000 + i),
			Text:      "m",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	e.up.chats = []upstream.Chat{{ID: 5}}
	ctx := context.Background()

	require.NoError(t, e.syncer(0).Backfill(ctx))

	count, err := e.msgs.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 120, count)
	assert.Equal(t, 3, e.up.messageCalls, "50 + 50 + 20, stops on short page")
}

func TestBackfillStopsAtPageCeiling(t *testing.T) {
	e := setupEnv(t)
	e.up.endless = true
	e.up.chats = []upstream.Chat{{ID: 7}, {ID: 8}}
	ctx := context.Background()

	require.NoError(t, e.syncer(3).Backfill(ctx))

	assert.Equal(t, 6, e.up.messageCalls)
	count, err := e.msgs.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2*3*backfillPageSize, count)

	entries, _ := e.log.All(ctx)
	assert.Contains(t, strings.Join(entries, "\n"), "stopped at page limit 3")
}

func TestWorkingSetDedupesAndTruncates(t *testing.T) {
	active := []upstream.Fan{{ID: 1}, {ID: 2}}
	expired := []upstream.Fan{{ID: 2}, {ID: 3}}

	all := workingSet(active, expired, 0)
	require.Len(t, all, 3)
	assert.EqualValues(t, 3, all[2].ID)

	two := workingSet(active, expired, 2)
	require.Len(t, two, 2)
	assert.EqualValues(t, 2, two[1].ID)
}

func TestNewSyncerDefaultsPageCeiling(t *testing.T) {
	s := NewSyncer(SyncDeps{Summarizer: profile.NewSummarizer()}, 0)
	assert.Equal(t, DefaultBackfillMaxPages, s.maxPages)
}
