package roster

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/geo"
)

var idPattern = regexp.MustCompile(`^(Soldier|Tank|Truck|Uav)-[1-9][0-9]$`)

func newGenerator(count int, seed int64) *Generator {
	return &Generator{
		Count:   count,
		Base:    geo.Position{Lat: geo.DefaultBaseLat, Long: geo.DefaultBaseLong},
		Scatter: DefaultScatter,
		Kinds:   AllKinds,
		Rand:    rand.New(rand.NewSource(seed)),
	}
}

func TestGenerateDefaults(t *testing.T) {
	pool := []string{"Videos/a.mp4", "Videos/b.mkv"}

	squad, err := newGenerator(8, 42).Generate(pool)
	require.NoError(t, err)
	require.Len(t, squad, 8)

	seen := map[string]bool{}
	for _, e := range squad {
		assert.Regexp(t, idPattern, e.ID)
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true

		assert.Contains(t, AllKinds, e.Kind)
		assert.InDelta(t, geo.DefaultBaseLat, e.Start.Lat, DefaultScatter)
		assert.InDelta(t, geo.DefaultBaseLong, e.Start.Long, DefaultScatter)
		assert.True(t, e.Heading.DLat >= -1 && e.Heading.DLat <= 1)
		assert.True(t, e.Heading.DLong >= -1 && e.Heading.DLong <= 1)
		assert.Contains(t, pool, e.VideoPath)
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	a, err := newGenerator(8, 7).Generate(nil)
	require.NoError(t, err)
	b, err := newGenerator(8, 7).Generate(nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	for _, e := range a {
		assert.Empty(t, e.VideoPath)
		assert.Equal(t, "-", e.AssetName())
	}
}

func TestGenerateExhaustsSuffixes(t *testing.T) {
	g := newGenerator(120, 1)
	g.Kinds = []Kind{KindTank}

	squad, err := g.Generate(nil)
	require.NoError(t, err)

	seen := map[string]bool{}
	numbered := 0
	for _, e := range squad {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
		if idPattern.MatchString(e.ID) {
			numbered++
		}
	}
	assert.Equal(t, 90, numbered)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Generator)
	}{
		{"zero count", func(g *Generator) { g.Count = 0 }},
		{"no kinds", func(g *Generator) { g.Kinds = nil }},
		{"no rand", func(g *Generator) { g.Rand = nil }},
		{"negative scatter", func(g *Generator) { g.Scatter = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(8, 1)
			tt.mutate(g)
			_, err := g.Generate(nil)
			assert.Error(t, err)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" UAV ")
	require.NoError(t, err)
	assert.Equal(t, KindAerial, k)

	_, err = ParseKind("submarine")
	assert.Error(t, err)
}
