package localdisc

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dir string) *LocalDiscObjectStore {
	t.Helper()
	s, err := NewLocalDiscObjectStore(dir, log_service.NoOpLogService{})
	require.NoError(t, err)
	return s
}

func TestLocalDiscObjectStore_PutGet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		data    []byte
		wantErr bool
	}{
		{name: "text", key: "file-000000", data: []byte("hello world")},
		{name: "binary", key: "file-000001", data: []byte{0x00, 0x01, 0x02, 0xFF}},
		{name: "repetitive payload", key: "file-000002", data: bytes.Repeat([]byte("abc"), 10000)},
		{name: "empty key", key: "", data: []byte("x"), wantErr: true},
		{name: "path traversal", key: "../escape", data: []byte("x"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, t.TempDir())

			handle, err := s.Put(ctx, tt.key, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			assert.True(t, s.Exists(ctx, handle))
			got, err := s.Get(ctx, handle)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestLocalDiscObjectStore_CompressesOnDisk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())
	data := bytes.Repeat([]byte("z"), 64*1024)

	handle, err := s.Put(ctx, "compressible", data)
	require.NoError(t, err)

	path, err := s.pathFor(handle)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(data)))
}

func TestLocalDiscObjectStore_WriteOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())

	h1, err := s.Put(ctx, "k", []byte("original"))
	require.NoError(t, err)
	h2, err := s.Put(ctx, "k", []byte("replacement"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	got, err := s.Get(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestLocalDiscObjectStore_DurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	handle, err := newStore(t, dir).Put(ctx, "persisted", []byte("still here"))
	require.NoError(t, err)

	reopened := newStore(t, dir)
	got, err := reopened.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), got)
}

func TestLocalDiscObjectStore_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())

	missing := handleFor("nope")
	_, err := s.Get(ctx, missing)
	assert.ErrorIs(t, err, object_store.ErrObjectNotFound)
	assert.ErrorIs(t, err, storage_errors.ErrNotFound)
	assert.False(t, s.Exists(ctx, missing))

	handle, err := s.Put(ctx, "gone", []byte("bye"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, handle))
	assert.False(t, s.Exists(ctx, handle))
	assert.ErrorIs(t, s.Delete(ctx, handle), object_store.ErrObjectNotFound)
}

func TestLocalDiscObjectStore_RejectsEscapingHandle(t *testing.T) {
	s := newStore(t, t.TempDir())
	_, err := s.Get(context.Background(), object_store.Handle("../../etc/passwd.chunk"))
	assert.ErrorIs(t, err, object_store.ErrInvalidKey)
}

func TestLocalDiscObjectStore_Health(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "node1")
	s := newStore(t, dir)

	require.NoError(t, s.Health(ctx))
	require.NoError(t, os.RemoveAll(dir))
	assert.ErrorIs(t, s.Health(ctx), object_store.ErrStoreUnavailable)
}
