// Package catalog régénère la galerie HTML statique à partir des miniatures du bucket.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/storage"
)

const (
	thumbPrefix = "thumb-"
	qrSize      = 256
	qrObject    = "gallery-qr.png"
)

var pageTemplate = template.Must(template.New("catalog").Parse(
	`<div class="gallery">
{{range .}}  <div class="card"><a href="{{.Link}}"><img src="{{.Thumb}}" alt="{{.Name}}"></a></div>
{{end}}</div>
`))

// Entry représente une miniature dans la galerie.
type Entry struct {
	Name  string // nom de l'image complète, sans préfixe
	Link  string // URL de l'image complète
	Thumb string // URL de la miniature
}

// Page est le résultat d'une régénération.
type Page struct {
	Object  string
	Entries []Entry
	QRCode  string
}

// Builder reconstruit et publie la page de galerie.
type Builder struct {
	Prefix  string // préfixe des objets traités, sans slash
	Object  string // nom de l'objet HTML publié
	QRCode  bool
	BaseURL func(bucket string) string
}

// Entries liste les miniatures et en déduit les entrées de la galerie, triées par nom d'objet.
func (b *Builder) Entries(ctx context.Context, bucketName string, bucket storage.Bucket) ([]Entry, error) {
	names, err := bucket.List(ctx, b.Prefix+"/"+thumbPrefix)
	if err != nil {
		return nil, err
	}

	base := b.BaseURL(bucketName)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		original := strings.TrimPrefix(path.Base(name), thumbPrefix)
		entries = append(entries, Entry{
			Name:  original,
			Link:  base + b.Prefix + "/" + original,
			Thumb: base + name,
		})
	}
	return entries, nil
}

// Render produit le fragment HTML. Même entrée, même sortie octet par octet.
func Render(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, entries); err != nil {
		return nil, fmt.Errorf("render catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// Build régénère la page complète et l'upload en écrasant la version précédente.
func (b *Builder) Build(ctx context.Context, bucketName string, bucket storage.Bucket) (Page, error) {
	entries, err := b.Entries(ctx, bucketName, bucket)
	if err != nil {
		return Page{}, err
	}

	html, err := Render(entries)
	if err != nil {
		return Page{}, err
	}

	scratch, err := os.MkdirTemp("", "catalog-*")
	if err != nil {
		return Page{}, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := uploadBytes(ctx, bucket, scratch, b.Object, html, "text/html; charset=utf-8"); err != nil {
		return Page{}, err
	}

	page := Page{Object: b.Object, Entries: entries}

	if b.QRCode {
		// Sous le préfixe traité, pour ne pas redéclencher la fonction.
		qrName := b.Prefix + "/" + qrObject
		png, err := qrcode.Encode(b.BaseURL(bucketName)+b.Object, qrcode.Medium, qrSize)
		if err != nil {
			return Page{}, fmt.Errorf("qrcode: %w", err)
		}
		if err := uploadBytes(ctx, bucket, scratch, qrName, png, "image/png"); err != nil {
			return Page{}, err
		}
		page.QRCode = qrName
	}

	return page, nil
}

// uploadBytes écrit data dans un fichier du dossier scratch, puis l'upload.
func uploadBytes(ctx context.Context, bucket storage.Bucket, scratch, name string, data []byte, contentType string) error {
	local := filepath.Join(scratch, path.Base(name))
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", local, err)
	}
	return bucket.Upload(ctx, local, name, contentType)
}
