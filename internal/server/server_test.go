package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/internal/registry"
	"github.com/YuminosukeSato/mlplayground/pipeline"
)

const sales = `id,ads,price,region,units
1,10,5.0,north,120
2,12,4.5,south,135
3,8,5.5,north,100
4,15,4.0,south,160
5,9,5.2,north,108
6,14,4.2,south,152
7,11,4.8,north,126
8,16,3.9,south,170
9,7,5.8,north,92
10,13,4.4,south,146
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := registry.Open(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, Options{PreviewRows: 2})
}

func runRequest(t *testing.T, config, data string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("config", config))
	require.NoError(t, mw.WriteField("name", "units model"))
	fw, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/run", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndEstimators(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/estimators", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []estimatorInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 8)
	assert.Equal(t, "linear_regression", list[0].ID)
	assert.Equal(t, "regression", list[0].Problem)
}

func TestInspect(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/inspect", strings.NewReader(sales)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inspectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Rows)
	assert.Equal(t, []string{"id", "units", "ads", "price", "region"}, resp.ColumnSelector)
	assert.Equal(t, "", resp.IDSelector[0])
	assert.Len(t, resp.Preview, 4)
	assert.Equal(t, "categorical", resp.Columns[3].Kind)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/inspect", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRun_PredictAndArtifacts(t *testing.T) {
	s := newTestServer(t)
	config := `{
		"target": "units",
		"id_column": "id",
		"train_size": 0.7,
		"numeric_steps": ["standard_scaler"],
		"categorical_steps": ["one_hot"],
		"estimator": "LinearRegression"
	}`
	rec := do(s, runRequest(t, config, sales))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "regression", resp.Problem)
	assert.Equal(t, 7, resp.TrainRows)
	assert.Equal(t, 3, resp.TestRows)
	require.NotNil(t, resp.Test.Regression)
	require.NotNil(t, resp.Artifact)
	assert.Equal(t, "units model", resp.Artifact.Name)
	assert.Equal(t, "linear_regression", resp.Artifact.Estimator)
	assert.Contains(t, resp.Artifact.Metrics, "r2")
	id := resp.Artifact.ID

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var arts []registry.Artifact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &arts))
	require.Len(t, arts, 1)
	assert.Equal(t, id, arts[0].ID)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/artifacts/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	p, err := pipeline.Unmarshal(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"pre_processing", "estimator"}, p.StepNames())

	newRows := "ads,price,region\n10,5.0,north\n15,4.0,south\n"
	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/artifacts/"+id+"/predict", strings.NewReader(newRows)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ads", "price", "region", "prediction"}, records[0])

	rec = do(s, httptest.NewRequest(http.MethodDelete, "/api/artifacts/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/artifacts/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun_Errors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		config string
		status int
	}{
		{"no config", "", http.StatusBadRequest},
		{"unknown estimator", `{"target": "units", "estimator": "knn"}`, http.StatusBadRequest},
		{"missing target", `{"target": "revenue", "estimator": "linear_regression"}`, http.StatusBadRequest},
		{"bad split", `{"target": "units", "estimator": "linear_regression", "train_size": 1.5}`, http.StatusBadRequest},
		{"categorical without preprocessing", `{"target": "units", "estimator": "linear_regression"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, runRequest(t, tt.config, sales))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	store, err := registry.Open(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	s := New(store, Options{MaxUploadBytes: 512})

	big := "a,b\n" + strings.Repeat("1,2\n", 2000)
	config := `{"target": "b", "estimator": "linear_regression"}`

	rec := do(s, runRequest(t, config, big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/inspect", strings.NewReader(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}
