package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataloader/internal/core"
	"github.com/JonMunkholm/dataloader/internal/ingest"
	"github.com/JonMunkholm/dataloader/internal/workerpool"
)

// stubIngester returns a canned result and records the request it saw.
type stubIngester struct {
	res   *core.Result
	calls int
	req   ingest.Request
	body  string
}

func (s *stubIngester) Ingest(_ context.Context, req ingest.Request) (*core.Result, error) {
	s.calls++
	s.req = req
	b, _ := io.ReadAll(req.Body)
	s.body = string(b)
	return s.res, s.res.Err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type form struct {
	fileName string
	content  string
	fields   map[string]string
}

func (f form) request(t *testing.T) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range f.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if f.fileName != "" {
		fw, err := mw.CreateFormFile(fieldFile, f.fileName)
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, UploadResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var body UploadResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func csvForm() form {
	return form{
		fileName: "people.csv",
		content:  "id,name\n1,a\n2,b\n",
		fields: map[string]string{
			fieldMapping:   `{"name":"full_name","id":"id"}`,
			fieldDelimiter: ";",
		},
	}
}

func TestIndex_RendersForm(t *testing.T) {
	s := NewServer(&stubIngester{}, nil, Options{MaxFileSize: 1 << 20})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="columnMapping"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHealth(t *testing.T) {
	ok := NewServer(&stubIngester{}, stubPinger{}, Options{})
	rec := httptest.NewRecorder()
	ok.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewServer(&stubIngester{}, stubPinger{err: errors.New("connection refused")}, Options{})
	rec = httptest.NewRecorder()
	down.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(&stubIngester{}, nil, Options{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loader_")
}

func TestUpload_PassesRequestThrough(t *testing.T) {
	stub := &stubIngester{res: &core.Result{
		LoadID:  "abc",
		Status:  core.StatusLoaded,
		Table:   "data_people_csv",
		Rows:    2,
		Chunks:  1,
		Elapsed: 1500 * time.Millisecond,
	}}
	s := NewServer(stub, nil, Options{MaxFileSize: 1 << 20})

	rec, body := serve(t, s, csvForm().request(t))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "people.csv", stub.req.FileName)
	assert.Equal(t, ";", stub.req.Delimiter)
	assert.Equal(t, []string{"full_name", "id"}, stub.req.Mapping.Targets())
	assert.Equal(t, "id,name\n1,a\n2,b\n", stub.body)

	assert.Equal(t, core.StatusLoaded, body.Status)
	assert.Equal(t, "data_people_csv", body.Table)
	assert.Equal(t, "Data successfully loaded into table data_people_csv in 1.50s", body.Message)
	assert.Equal(t, 2, body.Rows)
	assert.Empty(t, body.Code)
}

func TestUpload_RejectedBeforeIngest(t *testing.T) {
	tests := []struct {
		name     string
		form     form
		wantCode string
	}{
		{
			name:     "missing mapping",
			form:     form{fileName: "a.csv", content: "id\n1\n"},
			wantCode: core.CodeInvalidMapping,
		},
		{
			name:     "mapping not json",
			form:     form{fileName: "a.csv", content: "id\n1\n", fields: map[string]string{fieldMapping: "id=id"}},
			wantCode: core.CodeInvalidMapping,
		},
		{
			name:     "duplicate target",
			form:     form{fileName: "a.csv", content: "id\n1\n", fields: map[string]string{fieldMapping: `{"a":"x","b":"x"}`}},
			wantCode: core.CodeDuplicateColumn,
		},
		{
			name:     "no file",
			form:     form{fields: map[string]string{fieldMapping: `{"id":"id"}`}},
			wantCode: core.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubIngester{}
			s := NewServer(stub, nil, Options{MaxFileSize: 1 << 20})

			rec, body := serve(t, s, tt.form.request(t))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, core.StatusRejected, body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, "validation", body.Kind)
			assert.True(t, strings.HasPrefix(body.Message, "Error: "), body.Message)
			assert.Zero(t, stub.calls)
		})
	}
}

func TestUpload_MalformedMultipart(t *testing.T) {
	stub := &stubIngester{}
	s := NewServer(stub, nil, Options{MaxFileSize: 1 << 20})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("id,name\n1,a\n"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=missing")
	rec, body := serve(t, s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeInvalidRequest, body.Code)
	assert.Equal(t, "Send a multipart form with a file and a columnMapping field", body.Action)
	assert.Zero(t, stub.calls)
}

func TestUpload_StatusByKind(t *testing.T) {
	tests := []struct {
		name   string
		res    *core.Result
		status int
		kind   string
	}{
		{
			name:   "already loaded",
			res:    &core.Result{Status: core.StatusAlreadyLoaded, Table: "data_people_csv"},
			status: http.StatusOK,
		},
		{
			name:   "parse",
			res:    &core.Result{Status: core.StatusFailed, Err: core.ParseError(core.CodeMalformedRecord, errors.New("bare quote"))},
			status: http.StatusUnprocessableEntity,
			kind:   "parse",
		},
		{
			name:   "too many uploads",
			res:    &core.Result{Status: core.StatusRejected, Err: ingest.ErrTooManyUploads},
			status: http.StatusTooManyRequests,
			kind:   "internal",
		},
		{
			name:   "schema",
			res:    &core.Result{Status: core.StatusFailed, Err: core.SchemaError(core.CodeCreateTable, "create table", errors.New("boom"))},
			status: http.StatusInternalServerError,
			kind:   "schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&stubIngester{res: tt.res}, nil, Options{})
			rec, body := serve(t, s, csvForm().request(t))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.res.Status, body.Status)
			assert.Equal(t, tt.kind, body.Kind)
			assert.Equal(t, tt.res.Message(), body.Message)
		})
	}
}

func TestUpload_ListsFailedChunks(t *testing.T) {
	loadErr := core.LoadError(1, errors.New("value too long"))
	res := &core.Result{
		Status: core.StatusFailed,
		Table:  "data_people_csv",
		Rows:   4,
		Chunks: 3,
		Outcomes: []core.ChunkOutcome{
			{Index: 0, Rows: 2},
			{Index: 1, Rows: 2, Err: loadErr},
			{Index: 2, Rows: 2},
		},
		Err: loadErr,
	}
	s := NewServer(&stubIngester{res: res}, nil, Options{})

	rec, body := serve(t, s, csvForm().request(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, core.CodeChunkLoad, body.Code)
	assert.Equal(t, "load", body.Kind)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, ChunkFailure{Chunk: 1, Rows: 2, Error: loadErr.Error()}, body.Failures[0])
	assert.Equal(t, "Failed to process file: "+loadErr.Error(), body.Message)
}

func TestUpload_BodyTooLarge(t *testing.T) {
	stub := &stubIngester{}
	s := NewServer(stub, nil, Options{MaxFileSize: 64})

	f := csvForm()
	f.content = strings.Repeat("x", 4096)
	rec, body := serve(t, s, f.request(t))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, core.StatusRejected, body.Status)
	assert.Zero(t, stub.calls)
}

// memStore is a Registrar and Loader backed by memory.
type memStore struct {
	mu     sync.Mutex
	tables map[string][]string
	rows   []core.Row
}

func (m *memStore) Exists(_ context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table]
	return ok, nil
}

func (m *memStore) Create(_ context.Context, table string, columns []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; ok {
		return false, nil
	}
	m.tables[table] = columns
	return true, nil
}

func (m *memStore) Load(_ context.Context, _ string, _ []string, chunk core.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, chunk.Rows...)
	return nil
}

func TestUpload_EndToEnd(t *testing.T) {
	pool := workerpool.New(workerpool.Config{CoreWorkers: 2, MaxWorkers: 2, QueueSize: 4})
	t.Cleanup(pool.Close)

	store := &memStore{tables: map[string][]string{}}
	svc := ingest.NewService(store, store, pool, ingest.Config{ChunkSize: 1})
	s := NewServer(svc, nil, Options{MaxFileSize: 1 << 20})

	f := csvForm()
	f.fields[fieldDelimiter] = ","
	rec, body := serve(t, s, f.request(t))
	require.Equal(t, http.StatusOK, rec.Code, body.Message)
	assert.Equal(t, core.StatusLoaded, body.Status)
	assert.Equal(t, 2, body.Chunks)
	assert.Equal(t, []string{"full_name", "id"}, store.tables["data_people_csv"])
	assert.ElementsMatch(t, []core.Row{{"a", "1"}, {"b", "2"}}, store.rows)

	rec, body = serve(t, s, f.request(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusAlreadyLoaded, body.Status)
	assert.Equal(t, "Data already loaded into table data_people_csv", body.Message)

	pdf := csvForm()
	pdf.fileName = "report.pdf"
	rec, body = serve(t, s, pdf.request(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeUnsupportedType, body.Code)
	assert.NotContains(t, store.tables, "data_report_pdf")
}
