package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/xuri/excelize/v2"
)

func TestMain(m *testing.M) {
	root, err := os.MkdirTemp("", "pharmstock-cli")
	if err != nil {
		panic(err)
	}
	os.Setenv("APP_UPLOAD_DIR", filepath.Join(root, "uploads"))
	os.Setenv("APP_DATA_DIR", filepath.Join(root, "output"))
	os.Setenv("APP_REPORT_DIR", filepath.Join(root, "reports"))
	os.Setenv("DB_ENABLED", "false")
	os.Setenv("CACHE_ENABLED", "false")
	code := m.Run()
	os.RemoveAll(root)
	os.Exit(code)
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	require.NoError(t, f.SaveAs(path))
}

func fixtures(t *testing.T) (dir, stock, ref string) {
	t.Helper()
	dir = t.TempDir()

	stock = filepath.Join(dir, "stock.xlsx")
	writeWorkbook(t, stock, [][]interface{}{
		{"Désignation/Nom commercial", "Qté", "P. Achat", "P. vente", "N°Lot", "Pér.", "Date Achat"},
		{"DOLIPRANE 500MG B/16", 12, 95.5, 140, "L01", nil, nil},
	})
	ref = filepath.Join(dir, "chifa.xlsx")
	writeWorkbook(t, ref, [][]interface{}{
		{"N°", "DCI", "Désignation", "Code", "Tarif"},
		{1, "02A001 PARACETAMOL", "DOLIPRANE 500MG COMP B/16", "P001", 120},
	})
	return dir, stock, ref
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ExitErrHandler = func(*cli.Context, error) {}
	err := a.Run(append([]string{"pharmstock"}, args...))
	return out.String(), err
}

func TestClassify(t *testing.T) {
	dir, stock, ref := fixtures(t)
	missing := filepath.Join(dir, "missing.xlsx")

	out, err := run(t, "classify", stock, ref, missing)
	require.NoError(t, err)
	assert.Contains(t, out, stock+"\tstock\t1")
	assert.Contains(t, out, ref+"\treference\t1")
	assert.Contains(t, out, missing+"\terror")
}

func TestAnalyze(t *testing.T) {
	dir, stock, ref := fixtures(t)
	corrections := filepath.Join(dir, "corrections.json")
	require.NoError(t, os.WriteFile(corrections, []byte(`[{"name":"DOLIPRANE 500MG B/16","category":"parapharm"}]`), 0644))
	purchase := filepath.Join(dir, "out", "purchase.xlsx")
	full := filepath.Join(dir, "out", "report.xlsx")

	out, err := run(t, "analyze", "--purchase", purchase, "--report", full, "--corrections", corrections, stock, ref)
	require.NoError(t, err)
	assert.Contains(t, out, "stock.xlsx\tstock\timported\t1")
	assert.FileExists(t, purchase)
	assert.FileExists(t, full)
}

func TestAnalyze_NeedsFiles(t *testing.T) {
	fixtures(t)
	_, err := run(t, "analyze")
	assert.Error(t, err)
}
