// Package imageops applique les transformations d'image sur des fichiers locaux.
// Le format de sortie est déduit de l'extension du fichier.
package imageops

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Processor porte les options d'encodage communes.
type Processor struct {
	JPEGQuality int
}

// New crée un Processor qui encode les JPEG avec la qualité donnée.
func New(jpegQuality int) *Processor {
	return &Processor{JPEGQuality: jpegQuality}
}

// Blur floute le fichier path en place.
func (p *Processor) Blur(path string, sigma float64) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return p.save(imaging.Blur(img, sigma), path)
}

// Thumbnail écrit dans dst une copie de src recadrée au centre en width x height exactement.
func (p *Processor) Thumbnail(src, dst string, width, height int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	return p.save(imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos), dst)
}

func (p *Processor) save(img image.Image, path string) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(p.JPEGQuality)); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
