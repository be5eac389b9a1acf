// Package storage abstrait les buckets d'objets utilisés par la fonction :
// Cloud Storage en production, un dossier local ou la mémoire en dev et en test.
package storage

import (
	"context"
	"errors"
	"mime"
	"path"
)

// ErrNotExist est retourné quand l'objet demandé n'existe pas.
var ErrNotExist = errors.New("object does not exist")

// Store donne accès aux buckets par nom.
type Store interface {
	Bucket(name string) Bucket
}

// Bucket regroupe les opérations dont le pipeline a besoin sur un bucket.
type Bucket interface {
	// Download copie l'objet name dans le fichier local localPath.
	Download(ctx context.Context, name, localPath string) error
	// Upload écrit le fichier local localPath dans l'objet name (écrase l'existant).
	Upload(ctx context.Context, localPath, name, contentType string) error
	// Move renomme src en dst.
	Move(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, name string) error
	// List retourne les noms d'objets qui commencent par prefix, triés.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ContentType devine le type MIME d'un objet à partir de son extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
