package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"gitlab.com/Boursyt/cours_saas_project/moderate_script/internal/storage"
)

// transform produit l'objet canonique (flouté ou déplacé tel quel) et sa miniature.
// Tout le travail local (flou, miniature) est fait avant de modifier le bucket :
// une image illisible laisse le bucket inchangé.
func (p *Pipeline) transform(ctx context.Context, bucket storage.Bucket, name string, flagged bool) (canonical, thumbnail string, err error) {
	base := path.Base(name)
	canonical = p.CanonicalName(base, flagged)
	thumbnail = p.ThumbnailName(canonical)

	scratch, err := os.MkdirTemp("", "moderate-*")
	if err != nil {
		return "", "", fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	local := filepath.Join(scratch, base)
	if err := bucket.Download(ctx, name, local); err != nil {
		return "", "", fmt.Errorf("download: %w", err)
	}

	if flagged {
		if err := p.images.Blur(local, p.opts.BlurSigma); err != nil {
			return "", "", fmt.Errorf("blur: %w", err)
		}
	}

	thumbLocal := filepath.Join(scratch, path.Base(thumbnail))
	size := p.opts.ThumbnailSize
	if err := p.images.Thumbnail(local, thumbLocal, size, size); err != nil {
		return "", "", fmt.Errorf("thumbnail: %w", err)
	}

	if flagged {
		if err := bucket.Upload(ctx, local, canonical, storage.ContentType(canonical)); err != nil {
			return "", "", fmt.Errorf("upload: %w", err)
		}
		if !p.opts.KeepFlaggedOriginals {
			if err := bucket.Delete(ctx, name); err != nil {
				return "", "", fmt.Errorf("delete original: %w", err)
			}
		}
	} else {
		if err := bucket.Move(ctx, name, canonical); err != nil {
			return "", "", fmt.Errorf("move: %w", err)
		}
	}

	if err := bucket.Upload(ctx, thumbLocal, thumbnail, storage.ContentType(thumbnail)); err != nil {
		return "", "", fmt.Errorf("upload: %w", err)
	}

	return canonical, thumbnail, nil
}
