// Package pipeline enchaîne les trois étapes déclenchées par un upload :
// classification, transformation (flou + miniature) puis régénération de la galerie.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/catalog"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/moderation"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/storage"
)

const (
	blurredPrefix = "blurred-"
	thumbPrefix   = "thumb-"
	uploadPrefix  = "upload-"
)

// ErrInvalidEvent est retourné pour un événement sans bucket ou sans nom d'objet.
var ErrInvalidEvent = errors.New("invalid upload event")

// UploadEvent représente les données d'un événement Cloud Storage.
type UploadEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// Validate vérifie que l'événement désigne bien un objet.
func (e UploadEvent) Validate() error {
	if e.Bucket == "" {
		return fmt.Errorf("%w: missing bucket", ErrInvalidEvent)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: missing object name", ErrInvalidEvent)
	}
	return nil
}

// Result décrit ce que le pipeline a produit pour un événement.
type Result struct {
	Bucket         string
	Source         string
	Canonical      string
	Thumbnail      string
	Flagged        bool
	Skipped        bool
	Verdict        moderation.Verdict
	CatalogEntries int
}

// ImageProcessor applique les transformations sur des fichiers locaux.
type ImageProcessor interface {
	Blur(path string, sigma float64) error
	Thumbnail(src, dst string, width, height int) error
}

// CatalogBuilder régénère la galerie d'un bucket.
type CatalogBuilder interface {
	Build(ctx context.Context, bucketName string, bucket storage.Bucket) (catalog.Page, error)
}

// Options regroupe les réglages du pipeline.
type Options struct {
	Prefix               string
	ThumbnailSize        int
	BlurSigma            float64
	KeepFlaggedOriginals bool
}

// Pipeline reçoit tous ses collaborateurs à la construction.
type Pipeline struct {
	store      storage.Store
	classifier moderation.Classifier
	images     ImageProcessor
	catalog    CatalogBuilder
	opts       Options
}

// New crée un pipeline à partir de ses collaborateurs.
func New(store storage.Store, classifier moderation.Classifier, images ImageProcessor, builder CatalogBuilder, opts Options) *Pipeline {
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &Pipeline{
		store:      store,
		classifier: classifier,
		images:     images,
		catalog:    builder,
		opts:       opts,
	}
}

// ShouldProcess écarte les objets déjà traités et les pages HTML,
// pour que la fonction ne se redéclenche pas sur ses propres sorties.
func (p *Pipeline) ShouldProcess(name string) bool {
	if strings.HasPrefix(name, p.opts.Prefix+"/") {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return false
	}
	return true
}

// CanonicalName retourne le nom de l'objet final pour une image de nom de base base.
// Une image non floutée dont le nom commence par "thumb-" est renommée en "upload-thumb-...",
// sinon la galerie la prendrait pour une miniature.
func (p *Pipeline) CanonicalName(base string, flagged bool) string {
	if flagged {
		return p.opts.Prefix + "/" + blurredPrefix + base
	}
	if strings.HasPrefix(base, thumbPrefix) {
		base = uploadPrefix + base
	}
	return p.opts.Prefix + "/" + base
}

// ThumbnailName retourne le nom de la miniature d'un objet canonique.
func (p *Pipeline) ThumbnailName(canonical string) string {
	return p.opts.Prefix + "/" + thumbPrefix + path.Base(canonical)
}

// Handle traite un événement d'upload. Toute erreur d'un collaborateur arrête le traitement.
func (p *Pipeline) Handle(ctx context.Context, ev UploadEvent) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}

	logger := zerolog.Ctx(ctx).With().Str("bucket", ev.Bucket).Str("object", ev.Name).Logger()
	result := Result{Bucket: ev.Bucket, Source: ev.Name}

	if !p.ShouldProcess(ev.Name) {
		logger.Debug().Msg("Object ignored (processed output or HTML page)")
		result.Skipped = true
		return result, nil
	}

	totalStart := time.Now()
	bucket := p.store.Bucket(ev.Bucket)

	classifyStart := time.Now()
	verdict, err := p.classifier.Classify(ctx, ev.Bucket, ev.Name)
	if err != nil {
		return result, fmt.Errorf("classify: %w", err)
	}
	result.Verdict = verdict
	result.Flagged = verdict.Flagged()
	logger.Info().
		Stringer("adult", verdict.Adult).
		Stringer("violence", verdict.Violence).
		Stringer("racy", verdict.Racy).
		Bool("flagged", result.Flagged).
		Dur("duration", time.Since(classifyStart)).
		Msg("Image classified")

	transformStart := time.Now()
	canonical, thumbnail, err := p.transform(ctx, bucket, ev.Name, result.Flagged)
	if err != nil {
		return result, err
	}
	result.Canonical = canonical
	result.Thumbnail = thumbnail
	logger.Info().
		Str("canonical", canonical).
		Str("thumbnail", thumbnail).
		Dur("duration", time.Since(transformStart)).
		Msg("Image transformed")

	catalogStart := time.Now()
	page, err := p.catalog.Build(ctx, ev.Bucket, bucket)
	if err != nil {
		return result, fmt.Errorf("catalog: %w", err)
	}
	result.CatalogEntries = len(page.Entries)
	logger.Info().
		Str("catalog", page.Object).
		Int("entries", result.CatalogEntries).
		Dur("duration", time.Since(catalogStart)).
		Dur("total", time.Since(totalStart)).
		Msg("Catalog rebuilt")

	return result, nil
}
