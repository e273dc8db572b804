package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"dgisync/internal/types"
)

// LocalStore keeps remote objects in a directory tree, such as a mounted
// network share. Selected by REMOTE_DIR.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) List(ctx context.Context, folder string) ([]types.RemoteObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, filepath.FromSlash(folder))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, err)
	}

	var objects []types.RemoteObject
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		objects = append(objects, types.RemoteObject{
			ID:   joinKey(folder, entry.Name()),
			Name: entry.Name(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *LocalStore) Upsert(ctx context.Context, localPath, remoteName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := joinKey(remoteName)
	target := filepath.Join(s.root, filepath.FromSlash(id))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", wrapError(CodePermissionDenied, false, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", wrapError(CodeObjectNotFound, false, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(target)
	if err != nil {
		return "", wrapError(CodeWriteFailed, true, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", wrapError(CodeWriteFailed, true, err)
	}
	if err := dst.Close(); err != nil {
		return "", wrapError(CodeWriteFailed, true, err)
	}
	return id, nil
}

func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(id)))
	if err != nil && !os.IsNotExist(err) {
		return wrapError(CodeWriteFailed, true, err)
	}
	return nil
}
