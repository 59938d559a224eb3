package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(Normalize(v))
	require.NoError(t, err)
	return string(b)
}

func TestNormalize_LocalMidnightKeepsCalendarDay(t *testing.T) {
	zones := []*time.Location{
		time.Local,
		time.UTC,
		time.FixedZone("UTC+14", 14*3600),
		time.FixedZone("UTC-12", -12*3600),
		time.FixedZone("UTC+5:30", 5*3600+1800),
	}
	for _, loc := range zones {
		t.Run(loc.String(), func(t *testing.T) {
			midnight := time.Date(2024, time.June, 15, 0, 0, 0, 0, loc)
			assert.Equal(t, "2024-06-15", Normalize(midnight))
			assert.Equal(t, "2024-06-15", Normalize(&midnight))
		})
	}
}

func TestNormalize_StructKeepsDeclarationOrder(t *testing.T) {
	type calories struct {
		Gender   string    `json:"gender"`
		Age      int       `json:"age"`
		Date     time.Time `json:"date"`
		WeightKg float64   `json:"weight_kg"`
		Secret   string    `json:"-"`
		Note     string    `json:"note,omitempty"`
		Plain    bool
		hidden   int
	}

	in := calories{
		Gender:   "F",
		Age:      24,
		Date:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("X", -5*3600)),
		WeightKg: 61.5,
		Secret:   "s",
		hidden:   1,
	}

	assert.Equal(t,
		`{"gender":"F","age":24,"date":"2024-01-01","weight_kg":61.5,"Plain":false}`,
		encode(t, in))
}

func TestNormalize_Nested(t *testing.T) {
	type inner struct {
		When *time.Time `json:"when"`
	}
	type Base struct {
		ID int `json:"id"`
	}
	type outer struct {
		Base
		Items []inner          `json:"items"`
		Extra map[string]any   `json:"extra"`
		Ptr   *inner           `json:"ptr"`
		Any   any              `json:"any"`
		Arr   [2]time.Time     `json:"arr"`
		Tags  map[int]struct{} `json:"tags,omitempty"`
	}

	d := time.Date(2023, 12, 31, 0, 0, 0, 0, time.Local)
	in := outer{
		Base:  Base{ID: 3},
		Items: []inner{{When: &d}, {}},
		Extra: map[string]any{"born": d, "n": 1},
		Any:   d,
		Arr:   [2]time.Time{d, d.AddDate(0, 0, 1)},
	}

	assert.JSONEq(t, `{
		"id": 3,
		"items": [{"when":"2023-12-31"},{"when":null}],
		"extra": {"born":"2023-12-31","n":1},
		"ptr": null,
		"any": "2023-12-31",
		"arr": ["2023-12-31","2024-01-01"]
	}`, encode(t, in))
}

type custom struct{ v int }

func (c custom) MarshalJSON() ([]byte, error) { return []byte(`"custom"`), nil }

func TestNormalize_PassThrough(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Equal(t, 42, Normalize(42))
	assert.Equal(t, "x", Normalize("x"))
	assert.Equal(t, []byte("raw"), Normalize([]byte("raw")))
	assert.Equal(t, custom{v: 1}, Normalize(custom{v: 1}))
	assert.Equal(t, Date{2024, 6, 15}, Normalize(Date{2024, 6, 15}))
	assert.Nil(t, Normalize((*time.Time)(nil)))
	assert.Nil(t, Normalize([]int(nil)))
}

func TestObject_SetReplacesInPlace(t *testing.T) {
	o := &Object{}
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, o.Keys())
	v, ok := o.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"b":2}`, string(b))
}
