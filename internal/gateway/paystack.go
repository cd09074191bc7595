package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// SignatureHeader carries the HMAC-SHA512 signature Paystack puts on
// webhook deliveries.
const SignatureHeader = "x-paystack-signature"

// Error is a gateway-failure: a declined charge, a non-2xx response, or a
// transport problem such as a timeout. The raw gateway payload is kept
// for diagnostics and surfaced to the caller verbatim.
type Error struct {
	Operation  string
	StatusCode int
	Payload    json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: status %d: %s", e.Operation, e.StatusCode, e.Payload)
}

func (e *Error) Unwrap() error { return e.Err }

// Client talks to the Paystack transaction API. All calls carry a bounded
// timeout; a timed-out call is reported as an Error, never as success.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a Paystack API client.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// envelope is Paystack's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeResult is the gateway's answer to a new charge.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the settled state of a charge as the gateway sees it.
type VerifyResult struct {
	Status      string          `json:"status"`
	Reference   string          `json:"reference"`
	AmountKobo  int64           `json:"amount"`
	GatewayResp string          `json:"gateway_response"`
	Raw         json.RawMessage `json:"-"`
}

// Settled reports whether the gateway considers the charge paid.
func (r *VerifyResult) Settled() bool { return r.Status == "success" }

// Amount converts the gateway's subunit amount back to currency units.
func (r *VerifyResult) Amount() decimal.Decimal {
	return decimal.NewFromInt(r.AmountKobo).Shift(-2)
}

// RefundResult is the gateway's answer to a refund request.
type RefundResult struct {
	Status string `json:"status"`
}

// Initialize starts a charge for the given email and amount and returns
// the URL the customer must be redirected to. The amount is converted to
// the gateway's subunit (kobo).
func (c *Client) Initialize(ctx context.Context, email string, amount decimal.Decimal, reference string) (*InitializeResult, error) {
	body := map[string]interface{}{
		"email":     email,
		"amount":    amount.Shift(2).IntPart(),
		"reference": reference,
	}

	var result InitializeResult
	if err := c.post(ctx, "initialize", "/transaction/initialize", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Verify asks the gateway for the settled state of a charge.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	data, err := c.get(ctx, "verify", "/transaction/verify/"+reference)
	if err != nil {
		return nil, err
	}

	var result VerifyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &Error{Operation: "verify", Err: fmt.Errorf("malformed gateway response: %w", err)}
	}
	result.Raw = data
	return &result, nil
}

// Refund asks the gateway to refund a charge by reference.
func (c *Client) Refund(ctx context.Context, reference string) (*RefundResult, error) {
	body := map[string]interface{}{"transaction": reference}

	var result RefundResult
	if err := c.post(ctx, "refund", "/refund", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifySignature checks the webhook body against the signature header.
// Paystack signs the raw body with HMAC-SHA512 under the secret key.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) post(ctx context.Context, op, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Operation: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(op, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Operation: op, Err: fmt.Errorf("malformed gateway response: %w", err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &Error{Operation: op, Err: err}
	}
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Operation: op, StatusCode: resp.StatusCode, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Operation: op, StatusCode: resp.StatusCode, Payload: raw, Err: fmt.Errorf("malformed gateway response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return nil, &Error{Operation: op, StatusCode: resp.StatusCode, Payload: raw}
	}

	return env.Data, nil
}
