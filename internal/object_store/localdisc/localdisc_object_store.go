package localdisc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	"github.com/klauspost/compress/zstd"
)

const objectExt = ".chunk"

// LocalDiscObjectStore keeps zstd-compressed objects under baseDir, fanned
// out into two-level directories by a hash prefix of the key.
type LocalDiscObjectStore struct {
	baseDir string
	ls      log_service.LogService

	encoderPool sync.Pool
	decoderPool sync.Pool
}

func NewLocalDiscObjectStore(baseDir string, ls log_service.LogService) (*LocalDiscObjectStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}

	s := &LocalDiscObjectStore{
		baseDir: baseDir,
		ls:      ls,
	}
	s.encoderPool = sync.Pool{
		New: func() interface{} {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			return enc
		},
	}
	s.decoderPool = sync.Pool{
		New: func() interface{} {
			dec, _ := zstd.NewReader(nil)
			return dec
		},
	}
	return s, nil
}

func (s *LocalDiscObjectStore) BaseDir() string {
	return s.baseDir
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}

func handleFor(key string) object_store.Handle {
	sum := sha256.Sum256([]byte(key))
	prefix := hex.EncodeToString(sum[:1])
	return object_store.Handle(prefix + "/" + key + objectExt)
}

func (s *LocalDiscObjectStore) pathFor(handle object_store.Handle) (string, error) {
	rel := filepath.FromSlash(string(handle))
	if !filepath.IsLocal(rel) || !strings.HasSuffix(rel, objectExt) {
		return "", object_store.ErrInvalidKey
	}
	return filepath.Join(s.baseDir, rel), nil
}

func (s *LocalDiscObjectStore) Put(ctx context.Context, key string, data []byte) (object_store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validKey(key) {
		return "", object_store.ErrInvalidKey
	}

	handle := handleFor(key)
	path, err := s.pathFor(handle)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err == nil {
		s.ls.Debug(log_service.LogEvent{
			Message:  "Object already present, keeping original",
			Metadata: map[string]any{"key": key},
		})
		return handle, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.logWriteFailure(key, err)
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}

	enc := s.encoderPool.Get().(*zstd.Encoder)
	compressed := enc.EncodeAll(data, make([]byte, 0, len(data)/2+16))
	s.encoderPool.Put(enc)

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".chunk-*.tmp")
	if err != nil {
		s.logWriteFailure(key, err)
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(compressed); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		s.logWriteFailure(key, err)
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		s.logWriteFailure(key, err)
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		s.logWriteFailure(key, err)
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		s.logWriteFailure(key, err)
		return "", fmt.Errorf("%w: %v", object_store.ErrObjectWriteFailed, err)
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Object written",
		Metadata: map[string]any{"key": key, "size": len(data), "stored": len(compressed)},
	})
	return handle, nil
}

func (s *LocalDiscObjectStore) logWriteFailure(key string, err error) {
	s.ls.Error(log_service.LogEvent{
		Message:  "Failed to write object",
		Metadata: map[string]any{"key": key, "error": err.Error()},
	})
}

func (s *LocalDiscObjectStore) Get(ctx context.Context, handle object_store.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(handle)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, object_store.ErrObjectNotFound
		}
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to read object",
			Metadata: map[string]any{"handle": string(handle), "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", object_store.ErrObjectReadFailed, err)
	}

	dec := s.decoderPool.Get().(*zstd.Decoder)
	data, err := dec.DecodeAll(raw, nil)
	s.decoderPool.Put(dec)
	if err != nil {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Stored object is not decodable",
			Metadata: map[string]any{"handle": string(handle), "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: decompress: %v", object_store.ErrObjectReadFailed, err)
	}

	return data, nil
}

func (s *LocalDiscObjectStore) Exists(ctx context.Context, handle object_store.Handle) bool {
	if ctx.Err() != nil {
		return false
	}
	path, err := s.pathFor(handle)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (s *LocalDiscObjectStore) Delete(ctx context.Context, handle object_store.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(handle)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return object_store.ErrObjectNotFound
		}
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to delete object",
			Metadata: map[string]any{"handle": string(handle), "error": err.Error()},
		})
		return fmt.Errorf("%w: %v", object_store.ErrObjectDeleteFailed, err)
	}
	return nil
}

// Health checks that the base directory exists and accepts new files.
func (s *LocalDiscObjectStore) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return fmt.Errorf("%w: %v", object_store.ErrStoreUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", object_store.ErrStoreUnavailable, s.baseDir)
	}

	f, err := os.CreateTemp(s.baseDir, ".health-*")
	if err != nil {
		return fmt.Errorf("%w: %v", object_store.ErrStoreUnavailable, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

var _ object_store.ObjectStore = (*LocalDiscObjectStore)(nil)
