// Package moderation classe les images (contenu adulte / violent) via Cloud Vision SafeSearch.
package moderation

import (
	"context"
	"fmt"
)

// Likelihood est un niveau de sévérité ordinal, de 0 (inconnu) à 5 (très probable).
type Likelihood int

const (
	Unknown Likelihood = iota
	VeryUnlikely
	Unlikely
	Possible
	Likely
	VeryLikely
)

// String retourne le nom du niveau tel que Cloud Vision l'écrit.
func (l Likelihood) String() string {
	switch l {
	case VeryUnlikely:
		return "VERY_UNLIKELY"
	case Unlikely:
		return "UNLIKELY"
	case Possible:
		return "POSSIBLE"
	case Likely:
		return "LIKELY"
	case VeryLikely:
		return "VERY_LIKELY"
	case Unknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("Likelihood(%d)", int(l))
}

// Verdict est le résultat de la classification d'une image.
type Verdict struct {
	Adult    Likelihood
	Violence Likelihood
	Racy     Likelihood
}

// Flagged indique si l'image doit être floutée : adulte ou violence au niveau maximal.
func (v Verdict) Flagged() bool {
	return v.Adult == VeryLikely || v.Violence == VeryLikely
}

// Classifier analyse une image stockée dans un bucket.
type Classifier interface {
	Classify(ctx context.Context, bucket, name string) (Verdict, error)
}

// StaticClassifier retourne toujours le même verdict. Utilisé en local, sans Vision.
type StaticClassifier struct {
	Verdict Verdict
}

// Classify retourne le verdict fixe, sans appel réseau.
func (c StaticClassifier) Classify(context.Context, string, string) (Verdict, error) {
	return c.Verdict, nil
}
