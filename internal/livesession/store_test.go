// internal/livesession/store_test.go
package livesession

import (
	"testing"
	"time"

	xerrors "maproom-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(ttl, zap.NewNop())
	store.now = func() time.Time { return current }
	return store, &current
}

func TestCreateAndJoin(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindPoll, "Route vote", []string{"North", "South"}, nil)
	require.NoError(t, err)
	assert.Len(t, sess.Code, 6)
	assert.Contains(t, sess.Participants, int64(1))

	joined, err := store.Join(sess.Code, 2, "Alex")
	require.NoError(t, err)
	assert.Len(t, joined.Participants, 2)

	_, err = store.Join("NOSUCH", 3, "Sam")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestVote(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindPoll, "Route vote", []string{"North", "South"}, nil)
	require.NoError(t, err)
	_, err = store.Join(sess.Code, 2, "Alex")
	require.NoError(t, err)

	// non-participant cannot vote
	_, err = store.Vote(sess.Code, 99, 0)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	// out-of-range choice rejected
	_, err = store.Vote(sess.Code, 2, 5)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = store.Vote(sess.Code, 2, 0)
	require.NoError(t, err)

	// revote overwrites rather than double-counting
	snap, err := store.Vote(sess.Code, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, snap.VoteCounts())
}

func TestVoteOnNonPoll(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindGroup, "Field walk", nil, nil)
	require.NoError(t, err)

	_, err = store.Vote(sess.Code, 1, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestExpiryAndJanitor(t *testing.T) {
	store, current := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindGroup, "Field walk", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	*current = current.Add(2 * time.Hour)

	// expired entries are invisible before the janitor runs
	_, err = store.Snapshot(sess.Code)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.Equal(t, 0, store.Count())

	assert.Equal(t, 1, store.evictExpired())
	assert.Equal(t, 0, store.evictExpired())
}

func TestActivityExtendsDeadline(t *testing.T) {
	store, current := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindGroup, "Field walk", nil, nil)
	require.NoError(t, err)

	*current = current.Add(50 * time.Minute)
	_, err = store.Join(sess.Code, 2, "Alex")
	require.NoError(t, err)

	// would have expired at +1h without the join
	*current = current.Add(50 * time.Minute)
	_, err = store.Snapshot(sess.Code)
	assert.NoError(t, err)
}

func TestCloseIsHostOnly(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindPoll, "Route vote", []string{"A", "B"}, nil)
	require.NoError(t, err)
	_, err = store.Join(sess.Code, 2, "Alex")
	require.NoError(t, err)

	_, err = store.Close(sess.Code, 2)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	closed, err := store.Close(sess.Code, 1)
	require.NoError(t, err)
	assert.True(t, closed.Closed)

	// no joins or votes after close
	_, err = store.Join(sess.Code, 3, "Sam")
	assert.ErrorIs(t, err, xerrors.ErrConflict)
	_, err = store.Vote(sess.Code, 2, 0)
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}

func TestSnapshotIsACopy(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	sess, err := store.Create(1, 10, 100, KindPoll, "Route vote", []string{"A", "B"},
		map[string]interface{}{"theme": "dark"})
	require.NoError(t, err)

	snap, err := store.Snapshot(sess.Code)
	require.NoError(t, err)
	snap.Participants[42] = Participant{UserID: 42}
	snap.Votes[42] = 1
	snap.Payload["theme"] = "light"

	fresh, err := store.Snapshot(sess.Code)
	require.NoError(t, err)
	assert.NotContains(t, fresh.Participants, int64(42))
	assert.Empty(t, fresh.Votes)
	assert.Equal(t, "dark", fresh.Payload["theme"])
}
