package catalog

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/salon-margin/internal/ledger"
)

// decodeRows decodes the way the avec client does, keeping number literals.
func decodeRows(t *testing.T, body string) []RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var rows []RawRecord
	require.NoError(t, dec.Decode(&rows))
	return rows
}

func TestNormalize_TypedRecords(t *testing.T) {
	rows := decodeRows(t, `[
		{"id": 101, "servico": "Corte", "tempo": 30, "valor": 80.5, "categoria": "Cabelo"},
		{"id": 102, "servico": "Escova", "tempo": "45", "valor": null, "categoria": 7},
		{"id": 103, "servico": "Unha", "tempo": 20.0, "categoria": "Mãos"}
	]`)

	services, err := Normalize(rows)
	require.NoError(t, err)
	require.Len(t, services, 3)

	assert.Equal(t, "101", services[0].ID)
	assert.Equal(t, "Corte", services[0].Name)
	assert.Equal(t, 30, services[0].Duration)
	require.True(t, services[0].Price.Valid)
	assert.True(t, services[0].Price.Decimal.Equal(decimal.RequireFromString("80.5")))

	assert.Equal(t, 45, services[1].Duration)
	assert.Equal(t, "7", services[1].Category)
	assert.False(t, services[1].Price.Valid, "null price stays absent")

	assert.Equal(t, 20, services[2].Duration)
	assert.False(t, services[2].Price.Valid, "missing price stays absent")
}

func TestNormalize_MissingRequiredFieldFailsBatch(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
		index int
	}{
		"name":     {`[{"id":1,"servico":"A","tempo":10,"categoria":"X"},{"id":2,"tempo":10,"categoria":"X"}]`, FieldName, 1},
		"duration": {`[{"id":1,"servico":"A","categoria":"X"}]`, FieldDuration, 0},
		"category": {`[{"id":1,"servico":"A","tempo":10,"categoria":null}]`, FieldCategory, 0},
		"fraction": {`[{"id":1,"servico":"A","tempo":10.5,"categoria":"X"}]`, FieldDuration, 0},
		"price":    {`[{"id":1,"servico":"A","tempo":10,"categoria":"X","valor":"free"}]`, FieldPrice, 0},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			services, err := Normalize(decodeRows(t, tc.body))

			require.Error(t, err)
			assert.Nil(t, services)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.index, verr.Index)
		})
	}
}

func TestNormalize_IdentifierFallbacks(t *testing.T) {
	t.Run("alternate key", func(t *testing.T) {
		rows := decodeRows(t, `[
			{"codigo": "C-1", "servico": "A", "tempo": 10, "categoria": "X"},
			{"codigo": "C-2", "servico": "B", "tempo": 10, "categoria": "X"}
		]`)
		services, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, "C-1", services[0].ID)
		assert.Equal(t, "C-2", services[1].ID)
	})

	t.Run("first alternate wins", func(t *testing.T) {
		rows := decodeRows(t, `[{"uuid": "u1", "code": "k1", "servico": "A", "tempo": 10, "categoria": "X"}]`)
		services, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, "u1", services[0].ID)
	})

	t.Run("positional index", func(t *testing.T) {
		rows := decodeRows(t, `[
			{"servico": "A", "tempo": 10, "categoria": "X"},
			{"servico": "B", "tempo": 10, "categoria": "X"},
			{"servico": "C", "tempo": 10, "categoria": "X"}
		]`)
		services, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1", "2"}, ids(services))
	})

	t.Run("partial id column falls back for the whole batch", func(t *testing.T) {
		rows := decodeRows(t, `[
			{"id": 9, "servico": "A", "tempo": 10, "categoria": "X"},
			{"servico": "B", "tempo": 10, "categoria": "X"}
		]`)
		services, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1"}, ids(services))
	})

	t.Run("duplicate ids are not used", func(t *testing.T) {
		rows := decodeRows(t, `[
			{"id": 5, "code": "a", "servico": "A", "tempo": 10, "categoria": "X"},
			{"id": 5, "code": "b", "servico": "B", "tempo": 10, "categoria": "X"}
		]`)
		services, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(services))
	})

	t.Run("stable across repeated normalization", func(t *testing.T) {
		rows := decodeRows(t, `[{"servico": "A", "tempo": 10, "categoria": "X"},{"servico": "B", "tempo": 10, "categoria": "X"}]`)
		first, err := Normalize(rows)
		require.NoError(t, err)
		second, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(second))
	})
}

func TestNormalize_EmptyBatch(t *testing.T) {
	services, err := Normalize(nil)
	require.NoError(t, err)
	assert.NotNil(t, services)
	assert.Empty(t, services)
}

func TestMerge_LeftJoinKeepsEveryService(t *testing.T) {
	services := []ServiceRecord{
		{ID: "1", Name: "Corte"},
		{ID: "2", Name: "Escova"},
		{ID: "3", Name: "Unha"},
	}
	costs := ledger.Table{
		"2":     {ProductCost: decimal.NewFromInt(12), LaunderingCost: decimal.RequireFromString("2.5")},
		"stale": {ProductCost: decimal.NewFromInt(99), LaunderingCost: decimal.NewFromInt(99)},
	}

	rows := Merge(services, costs)

	require.Len(t, rows, len(services))
	for i, r := range rows {
		assert.Equal(t, services[i].ID, r.ID, "fetch order preserved")
		assert.NotEqual(t, "stale", r.ID)
	}
	assert.True(t, rows[0].ProductCost.IsZero())
	assert.True(t, rows[0].LaunderingCost.IsZero())
	assert.True(t, rows[1].VariableCost().Equal(decimal.RequireFromString("14.5")))
	assert.True(t, rows[2].VariableCost().IsZero())
}

func TestMerge_StaleOverrideDoesNotAffectResult(t *testing.T) {
	services := []ServiceRecord{{ID: "1", Name: "Corte"}, {ID: "2", Name: "Escova"}}
	base := ledger.Table{"1": {ProductCost: decimal.NewFromInt(3)}}
	withStale := ledger.Table{
		"1":  {ProductCost: decimal.NewFromInt(3)},
		"77": {ProductCost: decimal.NewFromInt(50)},
	}

	assert.Equal(t, Merge(services, base), Merge(services, withStale))
}

func TestMerge_EmptyFetch(t *testing.T) {
	rows := Merge(nil, ledger.Table{"1": {ProductCost: decimal.NewFromInt(1)}})

	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestFindByName_ReturnsFirstMatch(t *testing.T) {
	rows := Merge([]ServiceRecord{{ID: "a", Name: "Corte"}, {ID: "b", Name: "Corte"}}, nil)

	got, ok := FindByName(rows, "Corte")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = Find(rows, "zzz")
	assert.False(t, ok)
}

func ids(services []ServiceRecord) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = s.ID
	}
	return out
}
