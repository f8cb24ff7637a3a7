package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gpt2tok/gpt2tok/api"
	"github.com/gpt2tok/gpt2tok/envconfig"
	"github.com/gpt2tok/gpt2tok/tokenizer"
)

const (
	testVocab  = `{"a": 0, "b": 1, "ab": 2, "Ġ": 3, "Ġab": 4}`
	testMerges = "#version: 0.2\na b\nĠ ab\n"
)

func setup(t *testing.T, loaded bool) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tok := tokenizer.New()
	if loaded {
		if err := tok.Load(strings.NewReader(testVocab), strings.NewReader(testMerges)); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() { tok.Close() })

	s := NewServer(tok, 4)
	h, err := s.GenerateRoutes(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func request(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch body := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(body)
	default:
		bts, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		r = bytes.NewReader(bts)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestTokenize(t *testing.T) {
	h := setup(t, true)

	t.Run("missing body", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}

		resp := decode[api.ErrorResponse](t, w)
		if diff := cmp.Diff(api.ErrorResponse{Message: "missing request body", Code: api.ErrCodeInvalidRequest}, resp); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", `{"text": 1}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("tokenize text", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{Text: "ab ab"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		resp := decode[api.TokenizeResponse](t, w)
		if diff := cmp.Diff(api.TokenizeResponse{Tokens: []int32{2, 4}, Count: 2}, resp); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tokenize empty text", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		if diff := cmp.Diff(`{"tokens":[],"count":0}`, w.Body.String()); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{Text: "ab ab ab", MaxTokens: 2})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}

		if resp := decode[api.ErrorResponse](t, w); resp.Code != api.ErrCodeCapacity {
			t.Errorf("unexpected error %+v", resp)
		}
	})

	t.Run("server bound", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{Text: "ab ab ab ab ab", MaxTokens: 100})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("negative bound", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{Text: "ab", MaxTokens: -1})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{Text: "c"})
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}

		if resp := decode[api.ErrorResponse](t, w); resp.Code != api.ErrCodeUnknownSymbol {
			t.Errorf("unexpected error %+v", resp)
		}
	})
}

func TestDetokenize(t *testing.T) {
	h := setup(t, true)

	t.Run("detokenize tokens", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/detokenize", api.DetokenizeRequest{Tokens: []int32{2, 4, 3}})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		if diff := cmp.Diff(api.DetokenizeResponse{Text: "ab ab "}, decode[api.DetokenizeResponse](t, w)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("detokenize empty tokens", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/detokenize", api.DetokenizeRequest{})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		if diff := cmp.Diff(api.DetokenizeResponse{}, decode[api.DetokenizeResponse](t, w)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown token id", func(t *testing.T) {
		w := request(t, h, http.MethodPost, "/api/detokenize", api.DetokenizeRequest{Tokens: []int32{5}})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}

		resp := decode[api.ErrorResponse](t, w)
		if diff := cmp.Diff(api.ErrorResponse{Message: "decode: unknown token id 5", Code: api.ErrCodeUnknownTokenID}, resp); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNotLoaded(t *testing.T) {
	h := setup(t, false)

	for _, path := range []string{"/api/tokenize", "/api/detokenize"} {
		w := request(t, h, http.MethodPost, path, `{}`)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", path, w.Code)
		}

		if resp := decode[api.ErrorResponse](t, w); resp.Code != api.ErrCodeNotLoaded {
			t.Errorf("%s: unexpected error %+v", path, resp)
		}
	}

	w := request(t, h, http.MethodGet, "/api/show", nil)
	if resp := decode[api.ShowResponse](t, w); resp.Loaded || resp.VocabSize != 0 {
		t.Errorf("unexpected show response %+v", resp)
	}
}

func TestShow(t *testing.T) {
	h := setup(t, true)

	w := request(t, h, http.MethodGet, "/api/show", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	resp := decode[api.ShowResponse](t, w)
	if !resp.Loaded || resp.VocabSize != 5 || resp.Merges != 2 || resp.MaxTokens != 4 || resp.Scan == "" {
		t.Errorf("unexpected show response %+v", resp)
	}
}

func TestRequestID(t *testing.T) {
	h := setup(t, true)

	w := request(t, h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || w.Body.String() != "gpt2tok is running" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}

	if id := w.Header().Get(requestIDHeader); len(id) != 36 {
		t.Errorf("expected generated request id, got %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(requestIDHeader, "abc")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if id := w.Header().Get(requestIDHeader); id != "abc" {
		t.Errorf("expected request id to be echoed, got %q", id)
	}
}

func TestMetrics(t *testing.T) {
	h := setup(t, true)

	request(t, h, http.MethodPost, "/api/tokenize", api.TokenizeRequest{Text: "ab ab"})
	request(t, h, http.MethodPost, "/api/detokenize", api.DetokenizeRequest{Tokens: []int32{5}})

	w := request(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		`gpt2tok_requests_total{code="200",route="/api/tokenize"} 1`,
		`gpt2tok_requests_total{code="400",route="/api/detokenize"} 1`,
		`gpt2tok_tokens_total{direction="encode"} 2`,
		`gpt2tok_vocab_size 5`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCORS(t *testing.T) {
	t.Cleanup(envconfig.LoadConfig)
	t.Setenv("GPT2TOK_ORIGINS", "https://example.com")
	envconfig.LoadConfig()

	h := setup(t, true)

	cases := []struct {
		origin string
		allow  bool
	}{
		{"https://example.com", true},
		{"http://localhost:3000", true},
		{"https://evil.example", false},
	}

	for _, tt := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/api/tokenize", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allow {
			t.Errorf("origin %s: allowed = %v, want %v (status %d)", tt.origin, got, tt.allow, w.Code)
		}
	}
}
