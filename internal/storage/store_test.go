package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
)

func TestLocalSaveReadDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	key := Key("p1", "abc", ".PDF")
	assert.Equal(t, "p1/abc.pdf", key)

	n, err := store.Save(ctx, key, bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	got, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Read(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), ErrObjectNotFound)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "/abs/path", "a/../../b"} {
		_, err := store.Save(context.Background(), key, bytes.NewReader(nil))
		assert.True(t, errors.Is(err, common.ErrInvalidInput), "key %q", key)
	}
}

type failingStore struct {
	ByteStore
	deleted []string
}

func (f *failingStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return errors.New("bucket unavailable")
}

func TestTryDeleteSwallowsErrors(t *testing.T) {
	fs := &failingStore{}
	assert.NotPanics(t, func() {
		TryDelete(context.Background(), fs, "p1/x.pdf", nil)
		TryDelete(context.Background(), nil, "p1/x.pdf", nil)
		TryDelete(context.Background(), fs, "", nil)
	})
	assert.Equal(t, []string{"p1/x.pdf"}, fs.deleted)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "s3"}, nil)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}
