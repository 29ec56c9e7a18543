package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type book struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"isActive"`
	Pages    int    `json:"pages"`
	internal string
}

func TestToMap_Struct(t *testing.T) {
	m, err := ToMap(book{ID: "1", Title: "Dune", IsActive: true, Pages: 412, internal: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "1", "title": "Dune", "isActive": true, "pages": json.Number("412")}, m)
}

func TestToMap_MapIsCopied(t *testing.T) {
	in := map[string]any{"id": "1"}
	m, err := ToMap(in)
	require.NoError(t, err)
	m["id"] = "2"
	assert.Equal(t, "1", in["id"])
}

func TestToMap_Errors(t *testing.T) {
	_, err := ToMap(nil)
	assert.Error(t, err)

	_, err = ToMap([]string{"a"})
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "42", String(float64(42)))
	assert.Equal(t, "4.5", String(4.5))
	assert.Equal(t, "abc", String("abc"))
	assert.Equal(t, "7", String(7))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, id.String(), String(id))
}

func TestToMap_KeepsLargeIntegers(t *testing.T) {
	type row struct {
		ID int64 `json:"id"`
	}
	m, err := ToMap(row{ID: math.MaxInt64})
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807", String(m["id"]))
}

func TestToken_MatchesRecordProjection(t *testing.T) {
	type row struct {
		Big     int64     `json:"big"`
		Created time.Time `json:"created"`
		Score   float64   `json:"score"`
		Flag    bool      `json:"flag"`
	}
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	in := row{Big: 1<<53 + 1, Created: created, Score: 3, Flag: true}

	m, err := ToMap(in)
	require.NoError(t, err)

	tests := []struct {
		field string
		raw   any
		want  string
	}{
		{"big", in.Big, "9007199254740993"},
		{"created", in.Created, "2024-01-02T00:00:00Z"},
		{"score", 3, "3"},
		{"flag", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, Token(tt.raw))
			assert.Equal(t, tt.want, Token(m[tt.field]))
		})
	}

	assert.Equal(t, "7", Token(float64(7)))
	assert.Equal(t, "abc", Token("abc"))
	assert.Equal(t, "", Token(nil))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(nil, false))
	assert.False(t, Truthy(nil, true))
	assert.True(t, Truthy(true, true))
	assert.False(t, Truthy(false, true))
	assert.True(t, Truthy("true", true))
	assert.False(t, Truthy("nope", true))
	assert.False(t, Truthy(float64(0), true))
	assert.False(t, Truthy(json.Number("0"), true))
	assert.True(t, Truthy(json.Number("1"), true))
}
