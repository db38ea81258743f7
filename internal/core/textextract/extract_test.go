package textextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduceSizeM2SingleCandidate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain m2", "Sprzedam mieszkanie 47 m2 w centrum", 47},
		{"superscript", "Przytulne 38m² na Kazimierzu", 38},
		{"mkw", "55 mkw po remoncie", 55},
		{"dotted m kw", "Kawalerka 29 m.kw. blisko AGH", 29},
		{"metrow", "62 metrów, 3 pokoje", 62},
		{"decimal comma", "48,5 m2 z balkonem", 48.5},
		{"decimal dot", "51.3 m2 w kamienicy", 51.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeduceSizeM2(tt.text, 0)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 1e-9)
		})
	}
}

func TestDeduceSizeM2NoMatch(t *testing.T) {
	assert.Nil(t, DeduceSizeM2("Sprzedam mieszkanie w centrum, 3 pokoje", 0))
	assert.Nil(t, DeduceSizeM2("", 500000))
}

func TestDeduceSizeM2BoundsRejected(t *testing.T) {
	// Вне рамок правдоподобия площади
	assert.Nil(t, DeduceSizeM2("dzialka 999 m2", 0))

	// Двузначный шум тоже режется рамками
	got := DeduceSizeM2("mieszkanie 45 m2, taras 300 m2", 0)
	require.NotNil(t, got)
	assert.InDelta(t, 45, *got, 1e-9)
}

func TestDeduceSizeM2PricePerM2Filter(t *testing.T) {
	// 1500000 / 25 = 60000 за метр: неправдоподобно, остается 75
	got := DeduceSizeM2("antresola 25 m2, mieszkanie 75 m2", 1500000)
	require.NotNil(t, got)
	assert.InDelta(t, 75, *got, 1e-9)
}

func TestDeduceSizeM2SmallFlatWithPrice(t *testing.T) {
	// 300000 / 23 ≈ 13043 за метр: правдоподобно
	got := DeduceSizeM2("Kawalerka 23 m2 do remontu", 300000)
	require.NotNil(t, got)
	assert.InDelta(t, 23, *got, 1e-9)

	// 300000 / 230 ≈ 1300 за метр: неправдоподобно дешево
	assert.Nil(t, DeduceSizeM2("dom 230 m2", 300000))
}

func TestDeduceSizeM2PicksClosestToMarketAverage(t *testing.T) {
	// Оба кандидата проходят рамки; 700000/50 = 14000 точно в среднем
	got := DeduceSizeM2("salon 35 m2, całość 50 m2", 700000)
	require.NotNil(t, got)
	assert.InDelta(t, 50, *got, 1e-9)
}

func TestDeduceSizeM2AmbiguousWithoutPrice(t *testing.T) {
	// Без цены два кандидата неразличимы
	assert.Nil(t, DeduceSizeM2("salon 35 m2, całość 50 m2", 0))
}

func TestDeduceSizeM2DuplicatesCollapse(t *testing.T) {
	got := DeduceSizeM2("47 m2, powtórzone 47 m2 w opisie", 0)
	require.NotNil(t, got)
	assert.InDelta(t, 47, *got, 1e-9)
}
