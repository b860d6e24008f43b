package gblup

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/statgen/gblup/regress"
)

// ModelArtifact is the serialized snapshot of a fitted model: fixed-effect
// estimates and variance components. The on-disk encoding is gob; it is an
// opaque artifact, not a stable interchange format.
type ModelArtifact struct {
	Name       string
	FixedNames []string
	Beta       []float64
	SigmaNames []string
	Sigma      []float64
	Llik       float64
	Restricted bool
	SavedAt    time.Time
}

// SaveModel writes the artifact for fit to dir/<base>.<model name>.gob and
// returns the path written.
func SaveModel(fit *regress.Fitted, dir, base string) (string, error) {
	name := fit.Spec.Name
	if name == "" {
		name = "model"
	}
	art := &ModelArtifact{
		Name:       name,
		FixedNames: fit.Spec.XNames,
		Beta:       fit.Beta,
		Llik:       fit.Llik,
		Restricted: fit.Spec.Restricted,
		SavedAt:    time.Now(),
	}
	for _, nm := range fit.Sigma.Names() {
		v, _ := fit.Sigma.Get(nm)
		art.SigmaNames = append(art.SigmaNames, nm)
		art.Sigma = append(art.Sigma, v)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.%s.gob", base, safeName(name)))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(art); err != nil {
		return "", err
	}
	return path, nil
}

// LoadModel reads an artifact written by SaveModel.
func LoadModel(path string) (*ModelArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	art := new(ModelArtifact)
	if err := gob.NewDecoder(f).Decode(art); err != nil {
		return nil, fmt.Errorf("gblup: decoding model artifact %s: %w", path, err)
	}
	return art, nil
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', '(', ')':
			return '_'
		}
		return r
	}, name)
}
