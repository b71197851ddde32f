package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/api/middleware"
	"github.com/andresuchdata/pharmstock/backend-go/internal/catalogue"
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/report"
	"github.com/andresuchdata/pharmstock/backend-go/internal/repository"
	"github.com/andresuchdata/pharmstock/backend-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newRouter(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	svc := service.NewCatalogueService(service.Options{
		Session:   catalogue.NewSession(catalogue.Options{Clock: clock}),
		Store:     repository.NewMemory(),
		UploadDir: t.TempDir(),
		Clock:     clock,
	})
	return NewRouter(svc, Options{
		AllowedOrigins: []string{"*"},
		RateLimiter:    limiter,
		UploadDir:      t.TempDir(),
		MaxUpload:      1 << 20,
	})
}

func do(t *testing.T, r http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r http.Handler, files map[string][]byte, order ...string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return do(t, r, http.MethodPost, "/api/v1/imports", body.Bytes(), mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func loadCatalogue(t *testing.T, r http.Handler) {
	t.Helper()
	files := map[string][]byte{
		"stock.xlsx": workbook(t, [][]interface{}{
			{"Désignation/Nom commercial", "Qté", "P. Achat", "P. vente", "N°Lot", "Pér.", "Date Achat"},
			{"DOLIPRANE 500MG B/16", 12, 95.5, 140, "L01", nil, nil},
			{"SERUM PHYSIOLOGIQUE", 30, 50, 80, "L03", nil, nil},
		}),
		"chifa.xlsx": workbook(t, [][]interface{}{
			{"N°", "DCI", "Désignation", "Code", "Tarif"},
			{1, "02A001 PARACETAMOL", "DOLIPRANE 500MG COMP B/16", "P001", 120},
			{2, "02A001 PARACETAMOL", "EFFERALGAN 500MG COMP", "P002", 120},
		}),
		"notes.xlsx": workbook(t, [][]interface{}{{"Foo", "Bar", "Baz", "Qux"}}),
	}
	w := upload(t, r, files, "stock.xlsx", "chifa.xlsx", "notes.xlsx")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[struct {
		Outcomes []domain.ImportOutcome `json:"outcomes"`
	}](t, w)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, domain.KindStock, res.Outcomes[0].Kind)
	assert.Equal(t, domain.KindReference, res.Outcomes[1].Kind)
	assert.Equal(t, domain.FileStatusSkipped, res.Outcomes[2].Status)

	w = do(t, r, http.MethodPost, "/api/v1/recompute", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	r := newRouter(t, nil)
	w := do(t, r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","loaded":false}`, w.Body.String())
}

func TestReadsBeforeRecompute(t *testing.T) {
	r := newRouter(t, nil)
	for _, path := range []string{"/api/v1/summary", "/api/v1/products", "/api/v1/reports/full", "/api/v1/groups/molecules"} {
		w := do(t, r, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusConflict, w.Code, path)
		body := decode[map[string]any](t, w)
		assert.Equal(t, "NOT_LOADED", body["code"], path)
	}

	w := do(t, r, http.MethodPost, "/api/v1/recompute", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImportAndRead(t *testing.T) {
	r := newRouter(t, nil)
	loadCatalogue(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/summary", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[domain.DashboardSummary](t, w)
	assert.Equal(t, 2, summary.Products)

	w = do(t, r, http.MethodGet, "/api/v1/products?q=doliprane&page_size=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[domain.ProductPage](t, w)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "DOLIPRANE 500MG B/16", page.Items[0].Name)

	w = do(t, r, http.MethodGet, "/api/v1/products/"+url.PathEscape("DOLIPRANE 500MG B/16"), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[domain.Product](t, w)
	assert.Equal(t, "PARACETAMOL", p.Molecule)

	w = do(t, r, http.MethodGet, "/api/v1/products/NOPE", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/products/unmatched", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	unmatched := decode[[]domain.Product](t, w)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "SERUM PHYSIOLOGIQUE", unmatched[0].Name)

	w = do(t, r, http.MethodGet, "/api/v1/generics?molecule=PARACETAMOL&dosage=500MG", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ReferenceEntry](t, w), 2)

	w = do(t, r, http.MethodGet, "/api/v1/products?alert=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/imports", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ImportOutcome](t, w), 3)
}

func TestCorrectionsAndSettings(t *testing.T) {
	r := newRouter(t, nil)
	loadCatalogue(t, r)

	w := do(t, r, http.MethodPut, "/api/v1/corrections/"+url.PathEscape("serum physiologique"), []byte(`{"value":"parapharm"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := decode[domain.ManualCorrection](t, w)
	assert.Equal(t, "SERUM PHYSIOLOGIQUE", c.Name)

	w = do(t, r, http.MethodGet, "/api/v1/corrections", nil, "")
	assert.Len(t, decode[[]domain.ManualCorrection](t, w), 1)

	w = do(t, r, http.MethodGet, "/api/v1/groups/categories", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.CategoryGroup](t, w), 1)

	w = do(t, r, http.MethodDelete, "/api/v1/corrections/"+url.PathEscape("SERUM PHYSIOLOGIQUE"), nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/corrections/"+url.PathEscape("SERUM PHYSIOLOGIQUE"), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/settings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode[domain.Settings](t, w)
	settings.AlertSecurity = 25
	body, err := json.Marshal(settings)
	require.NoError(t, err)

	w = do(t, r, http.MethodPut, "/api/v1/settings", body, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 25.0, decode[domain.Settings](t, w).AlertSecurity)

	w = do(t, r, http.MethodPut, "/api/v1/settings", []byte(`{"alert_rupture":-1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[map[string]any](t, w)["code"])
}

func TestReportsAndReset(t *testing.T) {
	r := newRouter(t, nil)
	loadCatalogue(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/reports/purchase?filter=urgent", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "pharmstock_purchase_2026-03-15.xlsx")

	w = do(t, r, http.MethodGet, "/api/v1/reports/full", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/catalogue", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/summary", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImport_NoFiles(t *testing.T) {
	r := newRouter(t, nil)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())
	w := do(t, r, http.MethodPost, "/api/v1/imports", body.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newRouter(t, middleware.NewRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		w := do(t, r, http.MethodGet, "/api/v1/settings", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, r, http.MethodGet, "/api/v1/settings", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(t, r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code, "health checks are free")
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}

func TestImport_SameNamedLedgers(t *testing.T) {
	r := newRouter(t, nil)
	header := []interface{}{"Date", "Désignation/Nom commercial", "Q.Entrée", "Q.Sortie", "Fournisseur/Client/Pharmacien", "P. Achat", "P. vente"}
	months := [][]byte{
		workbook(t, [][]interface{}{header, {"2026-01-20", "DOLIPRANE 500MG B/16", 0, 30, "", 0, 140}}),
		workbook(t, [][]interface{}{header, {"2026-02-20", "DOLIPRANE 500MG B/16", 0, 40, "", 0, 140}}),
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, content := range months {
		part, err := mw.CreateFormFile("files", "mouvements.xlsx")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := do(t, r, http.MethodPost, "/api/v1/imports", body.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[struct {
		Outcomes []domain.ImportOutcome `json:"outcomes"`
		Staged   catalogue.StageStatus  `json:"staged"`
	}](t, w)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "2026-01", res.Outcomes[0].Month)
	assert.Equal(t, "2026-02", res.Outcomes[1].Month)
	assert.Equal(t, 2, res.Staged.LedgerFiles)
	assert.Equal(t, []string{"2026-01", "2026-02"}, res.Staged.LedgerMonths)
}
