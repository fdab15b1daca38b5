package store

import (
	"context"
	"errors"
	"testing"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleResult(t *testing.T) result.Result {
	t.Helper()
	l := lineup.New([]roster.Player{{ID: "a", Name: "Ann"}, {ID: "b", Name: "Bo"}})
	r, err := result.New("run-1", "sort-by-average", lineup.Policy{}, 2).WithProgress(1, 10)
	require.NoError(t, err)
	r, err = r.WithBest(0, l, 4.5)
	require.NoError(t, err)
	return r
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	st, err := NewFileStore(fs, "/cache")
	require.NoError(t, err)

	_, err = st.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	want := sampleResult(t)
	require.NoError(t, st.Save(context.Background(), "k1", want))

	got, err := st.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	exists, err := afero.Exists(fs, "/cache/k1.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	st, err := NewFileStore(afero.NewMemMapFs(), "/cache")
	require.NoError(t, err)
	assert.Error(t, st.Save(context.Background(), "../etc/passwd", sampleResult(t)))
	_, err = st.Load(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestKeyIsStable(t *testing.T) {
	players := []roster.Player{{ID: "a"}, {ID: "b"}}
	k1, err := Key(players, lineup.Policy{}, []string{"a", "b"}, map[string]int{"games": 10})
	require.NoError(t, err)
	k2, err := Key(players, lineup.Policy{}, []string{" b", "a"}, map[string]int{"games": 10})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := Key(players, lineup.Policy{Kind: lineup.AlternatingGender}, []string{"a", "b"}, map[string]int{"games": 10})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

type failingStore struct{}

func (failingStore) Save(context.Context, string, result.Result) error {
	return errors.New("bucket unavailable")
}

func (failingStore) Load(context.Context, string) (result.Result, error) {
	return result.Result{}, errors.New("bucket unavailable")
}

func TestMultiFansOut(t *testing.T) {
	st, err := NewFileStore(afero.NewMemMapFs(), "/cache")
	require.NoError(t, err)
	m := Multi{failingStore{}, st}

	err = m.Save(context.Background(), "k", sampleResult(t))
	assert.ErrorContains(t, err, "bucket unavailable")

	got, err := m.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)

	_, err = Multi{st}.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSinkPersistsSnapshots(t *testing.T) {
	st, err := NewFileStore(afero.NewMemMapFs(), "/cache")
	require.NoError(t, err)

	sink := Sink(context.Background(), st, "k", zap.NewNop())
	snap := sampleResult(t)
	sink(snap)
	final, err := snap.Complete(20)
	require.NoError(t, err)
	sink(final)

	got, err := st.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, result.Complete, got.Status)

	// A failing store does not panic the run.
	Sink(context.Background(), failingStore{}, "k", nil)(final)
}
