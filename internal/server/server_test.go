package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/export"
	"github.com/blue-scarf/paystamp/internal/extract"
	"github.com/blue-scarf/paystamp/internal/match"
	"github.com/blue-scarf/paystamp/internal/parser"
	"github.com/blue-scarf/paystamp/internal/pipeline"
	"github.com/blue-scarf/paystamp/internal/stamp"
)

const recognizedApplication = `FROM CONTRACTOR:
Archon Air Management Corp
APPLICATION NO: 4
PERIOD TO: 10/31/2025
4. TOTAL COMPLETED & STORED TO DATE $ 7,700.00
Total Retainage $ 770.00
8. CURRENT PAYMENT DUE $6,930.00`

type stubExtractor struct {
	text string
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (extract.RawExtraction, error) {
	return extract.FromText(s.text), nil
}

func newTestServer(t *testing.T, text string) (*httptest.Server, *catalog.Store) {
	t.Helper()

	catPath := filepath.Join(t.TempDir(), "commitments.csv")
	csv := "Number,Vendor,Cost Code\n" +
		"RES-OAKHS-13,Archon Air Management Corp,23-3000\n" +
		"RES-OAKHS-21,Bello Construction LLC,03-1000\n"
	require.NoError(t, os.WriteFile(catPath, []byte(csv), 0o644))
	cat := catalog.NewStore(catPath, nil)
	require.NoError(t, cat.Load(context.Background()))

	store, err := pipeline.OpenStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	composer, err := stamp.NewComposer(nil)
	require.NoError(t, err)

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Store:     store,
		Extractor: &stubExtractor{text: text},
		Parser:    parser.New("Shorecrest", nil),
		Matcher:   match.New(match.Thresholds{}, nil),
		Catalog:   cat,
		Composer:  composer,
		Approver:  "Dana Whitfield",
	})

	srv := New(orch, cat, export.NewService(store, nil), zap.NewNop(), 0)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, cat
}

func uploadBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, imaging.Encode(&img, imaging.New(1200, 900, color.White), imaging.PNG))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("page", "app.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func createSession(t *testing.T, ts *httptest.Server) map[string]any {
	t.Helper()
	body, contentType := uploadBody(t)
	resp, err := http.Post(ts.URL+"/sessions", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	return sess
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, recognizedApplication)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["catalog_records"])
}

func TestSessionLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, recognizedApplication)

	sess := createSession(t, ts)
	id := sess["id"].(string)
	assert.Equal(t, string(constants.StateAwaitingVerification), sess["state"])
	assert.Equal(t, "RES-OAKHS-13", sess["selected_commitment_id"])

	// Listing shows the session.
	resp, err := http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	var list struct {
		Sessions []map[string]any `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Sessions, 1)

	// Stamp, then deliver.
	resp = do(t, http.MethodPost, ts.URL+"/sessions/"+id+"/stamp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stamped map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stamped))
	resp.Body.Close()
	assert.Equal(t, string(constants.StateStamped), stamped["state"])

	resp = do(t, http.MethodPost, ts.URL+"/sessions/"+id+"/deliver", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(constants.StateDelivered), resp.Header.Get("X-Session-State"))
	resp.Body.Close()

	// Document preview of the stamped page.
	resp, err = http.Get(ts.URL + "/sessions/" + id + "/document?page=0&max_width=300")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	resp.Body.Close()
}

func TestStampBlockedUntilVerified(t *testing.T) {
	text := strings.Replace(recognizedApplication,
		"Archon Air Management Corp", "Sunrise Glazing Inc", 1)
	ts, _ := newTestServer(t, text)

	sess := createSession(t, ts)
	id := sess["id"].(string)
	assert.Nil(t, sess["selected_commitment_id"])

	resp := do(t, http.MethodPost, ts.URL+"/sessions/"+id+"/stamp", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Fix the vendor over PATCH, then stamping goes through.
	resp = do(t, http.MethodPatch, ts.URL+"/sessions/"+id+"/fields", map[string]any{
		"fields": map[string]string{"vendor_name": "Archon Air Management Corp"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&edited))
	resp.Body.Close()
	assert.Equal(t, "RES-OAKHS-13", edited["selected_commitment_id"])

	resp = do(t, http.MethodPost, ts.URL+"/sessions/"+id+"/stamp", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSelectMatchEndpoint(t *testing.T) {
	text := strings.Replace(recognizedApplication,
		"Archon Air Management Corp", "Sunrise Glazing Inc", 1)
	ts, _ := newTestServer(t, text)

	sess := createSession(t, ts)
	id := sess["id"].(string)

	resp := do(t, http.MethodPost, ts.URL+"/sessions/"+id+"/select-match",
		map[string]string{"commitment_id": "RES-OAKHS-21"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var picked map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&picked))
	resp.Body.Close()
	assert.Equal(t, "RES-OAKHS-21", picked["selected_commitment_id"])

	resp = do(t, http.MethodPost, ts.URL+"/sessions/"+id+"/select-match",
		map[string]string{"commitment_id": "NOPE-1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthzBeforeCatalogLoad(t *testing.T) {
	// A server wired to a store whose first Load has not happened yet must
	// still answer health and catalog reads.
	cat := catalog.NewStore(filepath.Join(t.TempDir(), "missing.csv"), nil)
	srv := New(nil, cat, nil, zap.NewNop(), 0)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/catalog")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, recognizedApplication)

	// No multipart body.
	resp, err := http.Post(ts.URL+"/sessions", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Bad session id.
	resp, err = http.Get(ts.URL + "/sessions/not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown session.
	resp, err = http.Get(ts.URL + "/sessions/" + "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Empty fields patch.
	sess := createSession(t, ts)
	id := sess["id"].(string)
	resp = do(t, http.MethodPatch, ts.URL+"/sessions/"+id+"/fields", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCatalogEndpoints(t *testing.T) {
	ts, cat := newTestServer(t, recognizedApplication)

	resp, err := http.Get(ts.URL + "/catalog")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Records []catalog.Record `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Len(t, body.Records, 2)
	assert.Equal(t, "RES-OAKHS-13", body.Records[0].CommitmentID)

	resp = do(t, http.MethodPost, ts.URL+"/catalog/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reload))
	resp.Body.Close()
	assert.Equal(t, float64(cat.Snapshot().Len()), reload["records"])
}

func TestMetricsExposed(t *testing.T) {
	ts, _ := newTestServer(t, recognizedApplication)
	createSession(t, ts)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "paystamp_http_requests_total")
}
