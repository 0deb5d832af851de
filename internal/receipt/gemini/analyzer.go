// Package gemini implements receipt analysis against the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pfm/internal/log"
	"pfm/internal/receipt"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

const extractionPrompt = `Analyze the attached receipt or invoice image and extract its contents.
Respond ONLY with a JSON object in exactly this format:
{
  "invoice_number": "string",
  "billing_address": {
    "name": "string",
    "address_line": "string",
    "city": "string",
    "state_province_code": "string",
    "postal_code": "string"
  },
  "product": [
    {
      "product_description": "string",
      "count": 1,
      "unit_item_price": 0.0,
      "product_total_price": 0.0,
      "category": "string"
    }
  ],
  "total_bill": {
    "total": 0.0,
    "discount_amount": 0.0,
    "tax_amount": 0.0,
    "delivery_charges": 0.0,
    "final_total": 0.0,
    "category_subtotals": {"string": 0.0}
  }
}
Assign each product a spending category such as Food, Groceries, Transportation or Shopping.
Use 0 for amounts that do not appear on the receipt. Do not invent line items.`

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
	Role  string        `json:"role,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type request struct {
	Contents         []requestContent  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type responsePart struct {
	Text string `json:"text"`
}

type responseContent struct {
	Parts []responsePart `json:"parts"`
	Role  string         `json:"role"`
}

type candidate struct {
	Content      responseContent `json:"content"`
	FinishReason string          `json:"finishReason"`
	Index        int             `json:"index"`
}

type apiResponse struct {
	Candidates     []candidate    `json:"candidates"`
	PromptFeedback map[string]any `json:"promptFeedback,omitempty"`
}

type Analyzer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

func NewAnalyzer(apiKey, model string, timeout time.Duration, logger *log.Logger) *Analyzer {
	return &Analyzer{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentReceipt),
	}
}

// Analyze sends the base64-encoded image to the model and parses the
// JSON it returns into an invoice. A response that is not valid invoice
// JSON comes back as receipt.ErrUnreadableResult so callers can tell a
// bad receipt from a transport failure.
func (a *Analyzer) Analyze(ctx context.Context, imageB64 string) (*receipt.Invoice, error) {
	payload := request{
		Contents: []requestContent{
			{
				Parts: []requestPart{
					{Text: extractionPrompt},
					{InlineData: &inlineData{MIMEType: "image/jpeg", Data: imageB64}},
				},
			},
		},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		a.logger.ErrorContext(ctx, "model returned non-OK status",
			log.FieldStatus, resp.Status)
		return nil, fmt.Errorf("model returned %s: %s", resp.Status, string(detail))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty model response", receipt.ErrUnreadableResult)
	}

	text := apiResp.Candidates[0].Content.Parts[0].Text
	inv, err := receipt.ParseInvoice([]byte(text))
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "receipt analyzed",
		"line_items", len(inv.Products),
		log.FieldAmountCents, inv.Amount().Cents)
	return inv, nil
}
