package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Object est un objet stocké par MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore implémente Store en mémoire, pour les tests.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]Object
}

// NewMemoryStore crée un store vide.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]Object)}
}

// Bucket retourne le bucket name, créé à la première écriture.
func (s *MemoryStore) Bucket(name string) Bucket {
	return &memBucket{store: s, name: name}
}

// Put ajoute un objet sans passer par un fichier local.
func (s *MemoryStore) Put(bucket, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects(bucket)[name] = Object{Data: data, ContentType: ContentType(name)}
}

// Get retourne l'objet et s'il existe.
func (s *MemoryStore) Get(bucket, name string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects(bucket)[name]
	return obj, ok
}

// Names liste tous les objets d'un bucket, triés.
func (s *MemoryStore) Names(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.buckets[bucket]))
	for name := range s.buckets[bucket] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// objects doit être appelé avec mu verrouillé.
func (s *MemoryStore) objects(bucket string) map[string]Object {
	objs, ok := s.buckets[bucket]
	if !ok {
		objs = make(map[string]Object)
		s.buckets[bucket] = objs
	}
	return objs
}

type memBucket struct {
	store *MemoryStore
	name  string
}

func (b *memBucket) Download(_ context.Context, name, localPath string) error {
	obj, ok := b.store.Get(b.name, name)
	if !ok {
		return fmt.Errorf("download %s: %w", name, ErrNotExist)
	}
	return os.WriteFile(localPath, obj.Data, 0o644)
}

func (b *memBucket) Upload(_ context.Context, localPath, name, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.objects(b.name)[name] = Object{Data: data, ContentType: contentType}
	return nil
}

func (b *memBucket) Move(_ context.Context, src, dst string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	objs := b.store.objects(b.name)
	obj, ok := objs[src]
	if !ok {
		return fmt.Errorf("move %s: %w", src, ErrNotExist)
	}
	objs[dst] = obj
	delete(objs, src)
	return nil
}

func (b *memBucket) Delete(_ context.Context, name string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	objs := b.store.objects(b.name)
	if _, ok := objs[name]; !ok {
		return fmt.Errorf("delete %s: %w", name, ErrNotExist)
	}
	delete(objs, name)
	return nil
}

func (b *memBucket) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	for _, name := range b.store.Names(b.name) {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}
