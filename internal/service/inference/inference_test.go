package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
)

func sampleRequest() *mapping.InferenceRequest {
	return &mapping.InferenceRequest{Sheets: []model.SheetSummary{{
		Name:       "Stats",
		Headers:    []string{"Mois", "Abonnés"},
		SampleRows: [][]string{{"janvier 2024", "1200"}},
		RowCount:   12,
	}}}
}

const validBody = `{"sheet":"Stats","date_column":0,"mapping":{"followers":1,"reach":null},"skip_columns":[],"date_format":"MMMM YYYY","start_row":2,"confidence":"high"}`

func TestHTTPInferrerSuccess(t *testing.T) {
	var got mapping.InferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(validBody))
	}))
	defer srv.Close()

	resp, err := NewHTTPInferrer(srv.URL, "secret", srv.Client()).Infer(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "Stats", resp.Sheet)
	require.NotNil(t, resp.DateColumn)
	assert.Equal(t, 0, *resp.DateColumn)
	require.NotNil(t, resp.Mapping["followers"])
	assert.Equal(t, 1, *resp.Mapping["followers"])
	assert.Nil(t, resp.Mapping["reach"])
	assert.Equal(t, "high", resp.Confidence)

	require.Len(t, got.Sheets, 1)
	assert.Equal(t, []string{"Mois", "Abonnés"}, got.Sheets[0].Headers)
	assert.Equal(t, 12, got.Sheets[0].RowCount)
}

func TestHTTPInferrerClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewHTTPInferrer(srv.URL, "wrong", srv.Client()).Infer(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestHTTPInferrerMissingEndpoint(t *testing.T) {
	_, err := NewHTTPInferrer("", "", nil).Infer(context.Background(), sampleRequest())
	require.Error(t, err)
}

func TestRetryClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(validBody))
	}))
	defer srv.Close()

	client := NewRetryClient(srv.Client(), 3).WithDelays(time.Millisecond, 5*time.Millisecond)
	resp, err := NewHTTPInferrer(srv.URL, "", client).Infer(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Stats", resp.Sheet)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewRetryClient(srv.Client(), 3).WithDelays(time.Millisecond, time.Millisecond)
	_, err := NewHTTPInferrer(srv.URL, "", client).Infer(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryClientReturnsLastResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewRetryClient(srv.Client(), 2).WithDelays(time.Millisecond, time.Millisecond)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDecodeResponseRepairsMalformedJSON(t *testing.T) {
	raw := "```json\n{\"sheet\": \"Stats\", \"date_column\": 0, \"mapping\": {\"followers\": 1,}, \"confidence\": \"low\",}\n```"

	resp, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Stats", resp.Sheet)
	require.NotNil(t, resp.Mapping["followers"])
	assert.Equal(t, 1, *resp.Mapping["followers"])
	assert.Equal(t, "low", resp.Confidence)
}

func TestDecodeResponseEmpty(t *testing.T) {
	_, err := DecodeResponse("   ")
	require.Error(t, err)
}

func TestGeminiInferrerUsesPromptAndDecodes(t *testing.T) {
	var prompt string
	g := &GeminiInferrer{generate: func(_ context.Context, p string) (string, error) {
		prompt = p
		return validBody, nil
	}}

	resp, err := g.Infer(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Stats", resp.Sheet)
	assert.Contains(t, prompt, "followers : Abonnés")
	assert.Contains(t, prompt, "content_published")
	assert.True(t, strings.Contains(prompt, `"Mois"`), "prompt should embed headers")
}

func TestGeminiInferrerPropagatesErrors(t *testing.T) {
	g := &GeminiInferrer{generate: func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	_, err := g.Infer(context.Background(), sampleRequest())
	require.Error(t, err)
}

func TestNewGeminiInferrerRequiresKey(t *testing.T) {
	_, err := NewGeminiInferrer(context.Background(), "", "")
	require.Error(t, err)
}
