package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pfm/internal/log"
	"pfm/internal/receipt"
)

func newTestAnalyzer(url string) *Analyzer {
	a := NewAnalyzer("test-key", "gemini-1.5-flash-latest", 5*time.Second, log.New(log.DefaultConfig()))
	a.baseURL = url
	return a
}

func modelResponse(text string) apiResponse {
	return apiResponse{Candidates: []candidate{
		{Content: responseContent{Parts: []responsePart{{Text: text}}}},
	}}
}

func TestAnalyze(t *testing.T) {
	invoiceJSON := `{
		"invoice_number": "INV-7",
		"product": [
			{"product_description": "Milk", "count": 2, "unit_item_price": 1.5, "product_total_price": 3.0, "category": "Groceries"}
		],
		"total_bill": {"total": 3.0, "final_total": 3.0}
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("request missing API key")
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Error("request should force a JSON response")
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[1].InlineData == nil || parts[1].InlineData.Data != "aW1n" {
			t.Errorf("request should carry the image as inline data, got %+v", parts)
		}
		json.NewEncoder(w).Encode(modelResponse(invoiceJSON))
	}))
	defer srv.Close()

	inv, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatal(err)
	}
	if inv.InvoiceNumber != "INV-7" || len(inv.Products) != 1 {
		t.Errorf("invoice = %+v", inv)
	}
	if inv.Amount().Cents != 300 {
		t.Errorf("amount = %d cents, want 300", inv.Amount().Cents)
	}
}

func TestAnalyzeUnreadableResult(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"not json", "sorry, I cannot read this image"},
		{"no line items", `{"product": [], "total_bill": {"final_total": 0}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(modelResponse(tc.text))
			}))
			defer srv.Close()

			_, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "aW1n")
			if !errors.Is(err, receipt.ErrUnreadableResult) {
				t.Errorf("err = %v, want ErrUnreadableResult", err)
			}
		})
	}
}

func TestAnalyzeEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{})
	}))
	defer srv.Close()

	_, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "aW1n")
	if !errors.Is(err, receipt.ErrUnreadableResult) {
		t.Errorf("err = %v, want ErrUnreadableResult", err)
	}
}

func TestAnalyzeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "aW1n")
	if err == nil {
		t.Fatal("non-OK status should fail")
	}
	// Transport failures are transient, not unreadable results.
	if errors.Is(err, receipt.ErrUnreadableResult) {
		t.Error("server error must not be classified as unreadable")
	}
}
