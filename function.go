// Package function contient les Cloud Functions de modération d'images.
// ModerateImage est déclenchée par un upload dans le bucket : l'image est analysée
// par Cloud Vision, floutée si besoin, rangée sous le préfixe traité avec sa miniature,
// puis la galerie HTML est régénérée. RebuildCatalog régénère seulement la galerie.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/catalog"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/config"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/imageops"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/logging"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/moderation"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/pipeline"
	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/storage"
)

func init() {
	functions.CloudEvent("ModerateImage", ModerateImage)
	functions.HTTP("RebuildCatalog", RebuildCatalog)
}

// ModerateImage est le point d'entrée déclenché par l'upload d'un objet.
func ModerateImage(ctx context.Context, cloudEvent event.Event) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	eventData, err := parseEvent(cloudEvent)
	if err != nil {
		return err
	}

	eventID := cloudEvent.ID()
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ctx = log.With().Str("event_id", eventID).Logger().WithContext(ctx)

	store, err := storage.NewGCSStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	classifier, err := moderation.NewVisionClassifier(ctx)
	if err != nil {
		return err
	}
	defer classifier.Close()

	p := NewPipeline(cfg, store, classifier)
	if _, err := p.Handle(ctx, eventData); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("bucket", eventData.Bucket).Str("object", eventData.Name).Msg("Moderation failed")
		return err
	}
	return nil
}

// RebuildCatalog régénère la galerie du bucket passé en paramètre (ou CATALOG_BUCKET).
func RebuildCatalog(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	bucketName := r.URL.Query().Get("bucket")
	if bucketName == "" {
		bucketName = cfg.CatalogBucket
	}
	if bucketName == "" {
		http.Error(w, "missing bucket", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	store, err := storage.NewGCSStore(ctx)
	if err != nil {
		http.Error(w, "storage client", http.StatusInternalServerError)
		log.Error().Err(err).Msg("storage client")
		return
	}
	defer store.Close()

	page, err := NewCatalogBuilder(cfg).Build(ctx, bucketName, store.Bucket(bucketName))
	if err != nil {
		http.Error(w, "catalog rebuild failed", http.StatusInternalServerError)
		log.Error().Err(err).Str("bucket", bucketName).Msg("Catalog rebuild failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"bucket":  bucketName,
		"object":  page.Object,
		"entries": len(page.Entries),
	}); err != nil {
		log.Error().Err(err).Str("bucket", bucketName).Msg("Catalog response encoding failed")
	}
}

// NewPipeline assemble le pipeline à partir de la configuration et des collaborateurs.
func NewPipeline(cfg *config.Config, store storage.Store, classifier moderation.Classifier) *pipeline.Pipeline {
	return pipeline.New(store, classifier, imageops.New(cfg.JPEGQuality), NewCatalogBuilder(cfg), pipeline.Options{
		Prefix:               cfg.ProcessedPrefix,
		ThumbnailSize:        config.ThumbnailSize,
		BlurSigma:            cfg.BlurSigma,
		KeepFlaggedOriginals: cfg.KeepFlaggedOriginals,
	})
}

// NewCatalogBuilder crée le générateur de galerie configuré.
func NewCatalogBuilder(cfg *config.Config) *catalog.Builder {
	return &catalog.Builder{
		Prefix:  cfg.ProcessedPrefix,
		Object:  cfg.CatalogObject,
		QRCode:  cfg.CatalogQR,
		BaseURL: cfg.BaseURL,
	}
}

// parseEvent extrait les données GCS depuis le CloudEvent.
func parseEvent(cloudEvent event.Event) (pipeline.UploadEvent, error) {
	var data pipeline.UploadEvent
	if err := cloudEvent.DataAs(&data); err != nil {
		return pipeline.UploadEvent{}, fmt.Errorf("parse event: %w", err)
	}
	if err := data.Validate(); err != nil {
		return pipeline.UploadEvent{}, fmt.Errorf("parse event: %w", err)
	}
	return data, nil
}
