package frame

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regions = `region,year,income
Lazio,2021,100.5
Lombardia,2021,200
Lazio,2022,110
Sicilia,2022,
`

func TestReadCSV(t *testing.T) {
	tb, err := ParseCSV(regions)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "year", "income"}, tb.Columns())
	assert.Equal(t, 4, tb.Len())
	assert.Equal(t, []any{"Lazio", int64(2021), 100.5}, tb.Row(0))
	assert.Equal(t, []any{"Sicilia", int64(2022), nil}, tb.Row(3))
	assert.True(t, tb.IsNumeric("income"))
	assert.False(t, tb.IsNumeric("region"))
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ParseCSV("")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = ParseCSV("a,b\n1,2,3\n")
	assert.Error(t, err)

	tb, err := ParseCSV("a,b\n1\n")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), nil}, tb.Row(0))
}

func TestWhereSortGroup(t *testing.T) {
	tb, err := ParseCSV(regions)
	require.NoError(t, err)

	lazio, err := tb.Where("region", "==", "Lazio")
	require.NoError(t, err)
	assert.Equal(t, 2, lazio.Len())

	rich, err := tb.Where("income", ">", 150)
	require.NoError(t, err)
	assert.Equal(t, 1, rich.Len())
	assert.Equal(t, "Lombardia", rich.Row(0)[0])

	_, err = tb.Where("income", "~", 1)
	assert.ErrorIs(t, err, ErrUnsupportedOp)

	sorted, err := tb.SortBy("income", true)
	require.NoError(t, err)
	assert.Equal(t, "Lombardia", sorted.Row(0)[0])
	assert.Nil(t, sorted.Row(3)[2])

	g, err := tb.GroupBy("region", "income", AggSum)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "income"}, g.Columns())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []any{"Lazio", 210.5}, g.Row(0))
	assert.Equal(t, []any{"Sicilia", 0.0}, g.Row(2))

	c, err := tb.GroupBy("year", "income", AggCount)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2022), int64(1)}, c.Row(1))

	_, err = tb.GroupBy("region", "income", "median")
	assert.ErrorIs(t, err, ErrUnsupportedAgg)
}

func TestAggregate(t *testing.T) {
	tb, err := ParseCSV(regions)
	require.NoError(t, err)

	mean, err := tb.Aggregate("income", AggMean)
	require.NoError(t, err)
	assert.InDelta(t, 136.833, mean, 0.001)

	n, err := tb.Aggregate("income", AggCount)
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)

	_, err = tb.Aggregate("region", AggSum)
	assert.ErrorIs(t, err, ErrNotNumeric)

	_, err = tb.Aggregate("missing", AggSum)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	empty, err := New([]string{"x"}, nil)
	require.NoError(t, err)
	m, err := empty.Aggregate("x", AggMax)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(m))
}

func TestFromRecordsKeepsOrder(t *testing.T) {
	tb, err := FromRecords([]byte(`[{"z":1,"a":"x"},{"a":"y","z":2.5,"extra":true}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "extra"}, tb.Columns())
	assert.Equal(t, []any{int64(1), "x", nil}, tb.Row(0))
	assert.Equal(t, []any{2.5, "y", true}, tb.Row(1))

	_, err = FromRecords([]byte(`{"a":[1]}`))
	assert.ErrorIs(t, err, ErrNotRecords)
}

func TestFromColumnsJSON(t *testing.T) {
	tb, err := FromColumnsJSON([]byte(`{"city":["Roma","Milano"],"pop":[2.8,1.4]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "pop"}, tb.Columns())
	assert.Equal(t, []any{"Milano", 1.4}, tb.Row(1))

	_, err = FromColumnsJSON([]byte(`{"a":[1,2],"b":[1]}`))
	assert.ErrorIs(t, err, ErrRaggedColumns)
}

func TestToCSVRoundTrip(t *testing.T) {
	tb, err := ParseCSV(regions)
	require.NoError(t, err)
	again, err := ParseCSV(tb.ToCSV())
	require.NoError(t, err)
	assert.Equal(t, tb.Columns(), again.Columns())
	for i := 0; i < tb.Len(); i++ {
		assert.Equal(t, tb.Row(i), again.Row(i))
	}
}

func TestString(t *testing.T) {
	tb, err := ParseCSV("name,v\nab,1.0\nc,22\n")
	require.NoError(t, err)
	lines := strings.Split(tb.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "   name    v", lines[0])
	assert.Equal(t, "0    ab  1.0", lines[1])
	assert.Equal(t, "1     c   22", lines[2])
}

func TestParseWhitespace(t *testing.T) {
	tb, err := ParseWhitespace("Totals:\nregion   total\nLazio    10\nLombardia 20\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "total"}, tb.Columns())
	assert.Equal(t, 2, tb.Len())
}
