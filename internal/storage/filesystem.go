package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemStore implémente Store sur un dossier local : un sous-dossier par bucket.
// Sert à faire tourner le pipeline en local sans projet GCP.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore crée le dossier de base s'il n'existe pas.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// Bucket retourne le bucket stocké dans le sous-dossier name.
func (s *FilesystemStore) Bucket(name string) Bucket {
	return &fsBucket{dir: filepath.Join(s.baseDir, name)}
}

type fsBucket struct {
	dir string
}

// path résout un nom d'objet dans le dossier du bucket en refusant les "..".
func (b *fsBucket) path(name string) (string, error) {
	p := filepath.Join(b.dir, filepath.FromSlash(name))
	root := filepath.Clean(b.dir)
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object name %q: path traversal detected", name)
	}
	return p, nil
}

func (b *fsBucket) Download(_ context.Context, name, localPath string) error {
	p, err := b.path(name)
	if err != nil {
		return err
	}
	if err := copyFile(p, localPath); err != nil {
		return fmt.Errorf("download %s: %w", name, mapFSError(err))
	}
	return nil
}

func (b *fsBucket) Upload(_ context.Context, localPath, name, _ string) error {
	p, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := copyFile(localPath, p); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (b *fsBucket) Move(_ context.Context, src, dst string) error {
	srcPath, err := b.path(src)
	if err != nil {
		return err
	}
	dstPath, err := b.path(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, mapFSError(err))
	}
	return nil
}

func (b *fsBucket) Delete(_ context.Context, name string) error {
	p, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete %s: %w", name, mapFSError(err))
	}
	return nil
}

func (b *fsBucket) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(b.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == b.dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	sort.Strings(names)
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}
