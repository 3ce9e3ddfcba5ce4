package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestCatalog(t *testing.T) *Catalog {
	dir := t.TempDir()
	c, err := NewCatalog([]Entry{
		{Name: Reddito, Path: writeFile(t, dir, "reddito_2022.csv", "comune,reddito\nRoma,30000\nMilano,35000\n")},
		{Name: Stipendi, Path: writeFile(t, dir, "stipendi.tsv", "ente\tmedia\nASL\t2100.5\n")},
	})
	require.NoError(t, err)
	return c
}

func TestCatalogResolve(t *testing.T) {
	c := newTestCatalog(t)
	paths := c.Paths()

	e, err := c.Resolve(Reddito)
	require.NoError(t, err)
	assert.Equal(t, paths[Reddito], e.Path)

	e, err = c.Resolve(paths[Stipendi])
	require.NoError(t, err)
	assert.Equal(t, Stipendi, e.Name)

	e, err = c.Resolve("/somewhere/else/reddito.csv")
	require.NoError(t, err)
	assert.Equal(t, Reddito, e.Name)

	_, err = c.Resolve("/etc/passwd")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestCatalogOpen(t *testing.T) {
	c := newTestCatalog(t)
	tb, err := c.Open(Reddito, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"comune", "reddito"}, tb.Columns())
	assert.Equal(t, 2, tb.Len())

	again, err := c.Open(c.Paths()[Reddito], "")
	require.NoError(t, err)
	assert.Same(t, tb, again)

	tsv, err := c.Open(Stipendi, "")
	require.NoError(t, err)
	assert.Equal(t, []any{"ASL", 2100.5}, tsv.Row(0))
}

func TestCatalogMatchAndDescribe(t *testing.T) {
	c := newTestCatalog(t)
	assert.Equal(t, []string{Reddito}, c.Match("RED*"))
	assert.Equal(t, []string{Reddito, Stipendi}, c.Match("*.csv"))
	assert.Empty(t, c.Match("PENDO*"))

	desc := c.Describe()
	assert.Contains(t, desc, "REDDITO.csv")
	assert.Contains(t, desc, "columns: comune, reddito (2 rows)")
}

func TestNewCatalogRejectsEmptyPath(t *testing.T) {
	_, err := NewCatalog([]Entry{{Name: Amministrati}})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestExcelReader(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"anno", "totale"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{2023, 12.5}))
	p := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	tb, err := ReadFile(p, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"anno", "totale"}, tb.Columns())
	assert.Equal(t, []any{int64(2023), 12.5}, tb.Row(0))

	_, err = ReadFile(p, "Missing")
	assert.Error(t, err)

	_, err = ReadFile("data.parquet", "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
