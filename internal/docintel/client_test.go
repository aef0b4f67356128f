package docintel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

func newTestServer(t *testing.T, pollsBeforeDone int32, final AnalyzeOperation) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/documentintelligence/documentModels/prebuilt-layout:analyze", r.URL.Path)
			assert.Equal(t, "2024-11-30", r.URL.Query().Get("api-version"))
			assert.Equal(t, "3,4", r.URL.Query().Get("pages"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "%PDF-fake", string(body))
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			if polls.Add(1) <= pollsBeforeDone {
				_ = json.NewEncoder(w).Encode(AnalyzeOperation{Status: OperationStatusRunning})
				return
			}
			_ = json.NewEncoder(w).Encode(final)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestClientAnalyzePollsUntilSucceeded(t *testing.T) {
	final := AnalyzeOperation{
		Status: OperationStatusSucceeded,
		Result: AnalysisResult{
			ModelID: "prebuilt-layout",
			Pages:   []Page{{PageNumber: 1, Lines: []Line{{Content: "Revenue 100"}}}},
			Tables: []Table{{RowCount: 1, ColumnCount: 2, Cells: []Cell{
				{Kind: CellKindColumnHeader, RowIndex: 0, ColumnIndex: 0, Content: "Particulars"},
				{Kind: CellKindColumnHeader, RowIndex: 0, ColumnIndex: 1, Content: "2023"},
			}}},
		},
	}
	srv, polls := newTestServer(t, 2, final)

	c, err := New(srv.URL+"/", WithToken("secret"), WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	res, err := c.Analyze(context.Background(), "prebuilt-layout", []byte("%PDF-fake"), []int{3, 4})
	require.NoError(t, err)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, []string{"Revenue 100"}, res.Lines())
	require.Len(t, res.Tables, 1)
	assert.True(t, res.Tables[0].Cells[0].IsHeader())
}

func TestClientAnalyzeOperationFailed(t *testing.T) {
	srv, _ := newTestServer(t, 0, AnalyzeOperation{
		Status: OperationStatusFailed,
		Error:  &ServiceError{Code: "InvalidContent", Message: "corrupt"},
	})
	c, err := New(srv.URL, WithToken("secret"), WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), "prebuilt-layout", []byte("%PDF-fake"), []int{3, 4})
	require.Error(t, err)
	assert.True(t, IsServiceError(err))
	assert.Contains(t, err.Error(), "corrupt")
}

func TestClientAnalyzeRejectedSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401","message":"Access denied"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithToken("bad"))
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), "prebuilt-read", []byte("x"), nil)
	require.ErrorIs(t, err, common.ErrService)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestClientValidatesInput(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, common.ErrConfig)

	c, err := New("http://localhost")
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), "", []byte("x"), nil)
	require.ErrorIs(t, err, common.ErrConfig)
	_, err = c.Analyze(context.Background(), "prebuilt-read", nil, nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMapModel(t *testing.T) {
	assert.Equal(t, "prebuilt-invoice", MapModel("Invoice"))
	assert.Equal(t, "prebuilt-layout", MapModel(" printed tables "))
	assert.Equal(t, "prebuilt-layout", MapModel("prebuilt-layout"))
	assert.Equal(t, DefaultModel, MapModel("something else"))
	assert.Equal(t, "", MapModel(""))
	assert.Contains(t, Models(), "receipt")
	assert.Equal(t, "prebuilt-layout", ModelForMode("table"))
}

func TestFieldText(t *testing.T) {
	n := 1200.5
	f := Field{ValueObject: map[string]Field{
		"Amount": {ValueNumber: &n},
		"Name":   {ValueString: "Acme"},
	}}
	assert.Equal(t, "Amount: 1200.5, Name: Acme", f.Text())

	arr := Field{ValueArray: []Field{{Content: "a"}, {Content: ""}, {Content: "b"}}}
	assert.Equal(t, "a; b", arr.Text())

	cur := Field{ValueCurrency: &CurrencyValue{Amount: 10, CurrencyCode: "USD"}}
	assert.Equal(t, "USD 10.00", cur.Text())
}

func TestLimitedAnalyzerDelegates(t *testing.T) {
	var calls int
	inner := AnalyzerFunc(func(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error) {
		calls++
		return &AnalysisResult{ModelID: modelID}, nil
	})
	a := NewLimited(NewRateLimiter(1000), inner)
	for i := 0; i < 3; i++ {
		res, err := a.Analyze(context.Background(), "prebuilt-read", []byte("x"), nil)
		require.NoError(t, err)
		assert.Equal(t, "prebuilt-read", res.ModelID)
	}
	assert.Equal(t, 3, calls)
	assert.Nil(t, NewRateLimiter(0))
}

func TestLimitedAnalyzerHonoursContext(t *testing.T) {
	inner := AnalyzerFunc(func(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error) {
		return &AnalysisResult{}, nil
	})
	a := NewLimited(NewRateLimiter(0.001), inner)
	_, err := a.Analyze(context.Background(), "m", []byte("x"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, "m", []byte("x"), nil)
	require.Error(t, err)
}
