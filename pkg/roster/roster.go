// Package roster builds the initial configuration of a simulated squad.
package roster

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/picogrid/squad-sim/pkg/geo"
)

// Kind is the category of a simulated entity.
type Kind string

const (
	KindSoldier Kind = "soldier"
	KindTank    Kind = "tank"
	KindTruck   Kind = "truck"
	KindAerial  Kind = "uav"
)

// AllKinds lists every kind in declaration order.
var AllKinds = []Kind{KindSoldier, KindTank, KindTruck, KindAerial}

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

func (k Kind) String() string { return string(k) }

// Suffix range for generated identities.
const (
	minSuffix = 10
	maxSuffix = 99
)

// EntityConfig is the immutable starting configuration of one entity.
type EntityConfig struct {
	ID        string       `json:"id" yaml:"id"`
	Kind      Kind         `json:"type" yaml:"type"`
	Start     geo.Position `json:"start" yaml:"start"`
	Heading   geo.Heading  `json:"heading" yaml:"heading"`
	VideoPath string       `json:"video,omitempty" yaml:"video,omitempty"`
}

// Generator draws a random squad around Base.
type Generator struct {
	Count   int
	Base    geo.Position
	Scatter float64
	Kinds   []Kind
	Rand    *rand.Rand
}

// DefaultScatter is the half-width of the start box around the base.
const DefaultScatter = 0.01

// Generate returns Count entity configurations. Identities are unique
// within the result. Assets are drawn with replacement from pool; an empty
// pool gives video-less entities.
func (g *Generator) Generate(pool []string) ([]EntityConfig, error) {
	if g.Count < 1 {
		return nil, fmt.Errorf("entity count must be at least 1, got %d", g.Count)
	}
	if len(g.Kinds) == 0 {
		return nil, errors.New("at least one entity kind is required")
	}
	if g.Rand == nil {
		return nil, errors.New("random source is required")
	}
	if g.Scatter < 0 {
		return nil, fmt.Errorf("scatter must not be negative, got %v", g.Scatter)
	}

	taken := make(map[string]bool, g.Count)
	squad := make([]EntityConfig, 0, g.Count)

	for i := 0; i < g.Count; i++ {
		kind := g.Kinds[g.Rand.Intn(len(g.Kinds))]

		cfg := EntityConfig{
			ID:   g.identity(kind, taken),
			Kind: kind,
			Start: geo.Position{
				Lat:  g.Base.Lat + g.uniform(-g.Scatter, g.Scatter),
				Long: g.Base.Long + g.uniform(-g.Scatter, g.Scatter),
			},
			Heading: geo.Heading{
				DLat:  g.uniform(-1, 1),
				DLong: g.uniform(-1, 1),
			},
		}
		if len(pool) > 0 {
			cfg.VideoPath = pool[g.Rand.Intn(len(pool))]
		}

		taken[cfg.ID] = true
		squad = append(squad, cfg)
	}

	return squad, nil
}

// identity draws Kind-NN, redrawing NN on collision. Once every suffix of a
// kind is in use it falls back to a short uuid.
func (g *Generator) identity(kind Kind, taken map[string]bool) string {
	prefix := cases.Title(language.English).String(string(kind)) + "-"

	used := 0
	for n := minSuffix; n <= maxSuffix; n++ {
		if taken[fmt.Sprintf("%s%d", prefix, n)] {
			used++
		}
	}
	if used > maxSuffix-minSuffix {
		for {
			id := prefix + uuid.NewString()[:8]
			if !taken[id] {
				return id
			}
		}
	}

	for {
		id := fmt.Sprintf("%s%d", prefix, minSuffix+g.Rand.Intn(maxSuffix-minSuffix+1))
		if !taken[id] {
			return id
		}
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.Rand.Float64()*(hi-lo)
}

// AssetName returns the file name of an entity's video, or "-" if none.
func (c EntityConfig) AssetName() string {
	if c.VideoPath == "" {
		return "-"
	}
	return filepath.Base(c.VideoPath)
}
