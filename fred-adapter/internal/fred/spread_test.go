package fred

import (
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

func TestSpread_InnerJoinOnValidValues(t *testing.T) {
	sofr := model.Series{
		Dates:  []string{"2024-01-02", "2024-01-03"},
		Values: []null.Float{null.FloatFrom(5.0), null.FloatFrom(5.1)},
	}
	iorb := model.Series{
		Dates:  []string{"2024-01-02", "2024-01-03"},
		Values: []null.Float{null.FloatFrom(4.8), {}},
	}

	got := Spread(sofr, iorb)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "2024-01-02", got.Dates[0])
	assert.Equal(t, 0.2, got.Values[0].Float64, "decimal arithmetic keeps 5.0-4.8 exact")
}

func TestSpread_DateAbsentFromSubtrahend(t *testing.T) {
	a := model.Series{
		Dates:  []string{"2024-01-02", "2024-01-03"},
		Values: []null.Float{null.FloatFrom(5.0), null.FloatFrom(5.2)},
	}
	b := model.Series{
		Dates:  []string{"2024-01-02"},
		Values: []null.Float{null.FloatFrom(4.8)},
	}

	got := Spread(a, b)
	assert.Equal(t, []string{"2024-01-02"}, got.Dates)
	assert.Equal(t, []null.Float{null.FloatFrom(0.2)}, got.Values)
}

func TestSpread_FollowsMinuendOrder(t *testing.T) {
	a := model.Series{
		Dates:  []string{"2024-01-05", "2024-01-03", "2024-01-04", "2024-01-03"},
		Values: []null.Float{null.FloatFrom(5.33), null.FloatFrom(5.31), {}, null.FloatFrom(9)},
	}
	b := model.Series{
		Dates:  []string{"2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06"},
		Values: []null.Float{null.FloatFrom(5.4), null.FloatFrom(5.4), null.FloatFrom(5.4), null.FloatFrom(5.4)},
	}

	got := Spread(a, b)
	assert.Equal(t, []string{"2024-01-05", "2024-01-03"}, got.Dates)
	assert.InDelta(t, -0.07, got.Values[0].Float64, 1e-12)
	assert.InDelta(t, -0.09, got.Values[1].Float64, 1e-12)
	assert.Equal(t, got.Len(), got.Valid(), "spread never holds missing values")
}

func TestSpread_Empty(t *testing.T) {
	got := Spread(model.Series{}, model.Series{Dates: []string{"2024-01-02"}, Values: []null.Float{null.FloatFrom(1)}})
	assert.Zero(t, got.Len())
	assert.Len(t, got.Values, got.Len())
}
