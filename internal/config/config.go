// Package config charge la configuration de la fonction depuis l'environnement.
// Un fichier .env est lu s'il existe (utile en local).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ThumbnailSize est la taille fixe (carrée) des miniatures.
const ThumbnailSize = 234

// Config regroupe les réglages de la fonction, lus depuis l'environnement.
type Config struct {
	ProcessedPrefix      string
	CatalogObject        string
	CatalogBaseURL       string
	CatalogBucket        string
	CatalogQR            bool
	BlurSigma            float64
	JPEGQuality          int
	KeepFlaggedOriginals bool

	LogLevel  string
	LogFormat string
	Port      string
}

// Load lit l'environnement (et .env si présent) et valide les valeurs.
// Un .env absent est ignoré, un .env illisible est une erreur.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles est Load avec des fichiers d'environnement explicites.
func LoadFiles(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		ProcessedPrefix: strings.Trim(getEnv("PROCESSED_PREFIX", "images"), "/"),
		CatalogObject:   strings.TrimPrefix(getEnv("CATALOG_OBJECT", "gallery.html"), "/"),
		CatalogBaseURL:  getEnv("CATALOG_BASE_URL", ""),
		CatalogBucket:   getEnv("CATALOG_BUCKET", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		Port:            getEnv("PORT", "8080"),
	}

	var err error
	if cfg.CatalogQR, err = getBool("CATALOG_QR", false); err != nil {
		return nil, err
	}
	if cfg.KeepFlaggedOriginals, err = getBool("KEEP_FLAGGED_ORIGINALS", false); err != nil {
		return nil, err
	}
	if cfg.BlurSigma, err = getFloat("BLUR_SIGMA", 24); err != nil {
		return nil, err
	}
	if cfg.JPEGQuality, err = getInt("JPEG_QUALITY", 85); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProcessedPrefix == "" {
		return fmt.Errorf("PROCESSED_PREFIX must not be empty")
	}
	if c.CatalogObject == "" {
		return fmt.Errorf("CATALOG_OBJECT must not be empty")
	}
	if c.BlurSigma <= 0 {
		return fmt.Errorf("BLUR_SIGMA must be positive, got %v", c.BlurSigma)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be in [1,100], got %d", c.JPEGQuality)
	}
	return nil
}

// BaseURL retourne l'URL publique sous laquelle les objets du bucket sont servis.
// Sans CATALOG_BASE_URL, on utilise l'URL publique storage.googleapis.com.
func (c *Config) BaseURL(bucket string) string {
	base := c.CatalogBaseURL
	if base == "" {
		base = fmt.Sprintf("https://storage.googleapis.com/%s/", bucket)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
