// Package client is a typed client for the food record REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Token is sent as a bearer token when set.
	Token string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the backend.
func IsConflict(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusConflict
}

type CreateRecordRequest struct {
	ProductID           string          `json:"productId"`
	Metadata            json.RawMessage `json:"metadata"`
	MetadataHashOnChain string          `json:"metadataHashOnChain"`
	TransactionHash     string          `json:"transactionHash"`
}

type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type RecordSummary struct {
	ProductID           string    `json:"product_id"`
	ProductName         *string   `json:"product_name"`
	OnchainMetadataHash string    `json:"onchain_metadata_hash"`
	CreatedAt           time.Time `json:"created_at"`
}

type RecordPage struct {
	Items      []RecordSummary `json:"items"`
	TotalItems int64           `json:"total_items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int64           `json:"total_pages"`
}

type RecordDetail struct {
	ProductID                 string          `json:"product_id"`
	MetadataJSON              json.RawMessage `json:"metadata_json"`
	OnchainMetadataHash       string          `json:"onchain_metadata_hash"`
	BlockchainTransactionHash string          `json:"blockchain_transaction_hash"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

type Verification struct {
	ProductID      string    `json:"product_id"`
	StoredHash     string    `json:"stored_hash"`
	RecomputedHash string    `json:"recomputed_hash"`
	OnchainHash    string    `json:"onchain_hash"`
	HashRegistered bool      `json:"hash_registered"`
	MetadataIntact bool      `json:"metadata_intact"`
	OnchainMatch   bool      `json:"onchain_match"`
	Verified       bool      `json:"verified"`
	CheckedAt      time.Time `json:"checked_at"`
}

func (c *Client) Health(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRecord(ctx context.Context, req CreateRecordRequest) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodPost, "/api/food-records", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRecords(ctx context.Context, page, pageSize int) (*RecordPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/api/food-records"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out RecordPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRecord(ctx context.Context, productID string) (*RecordDetail, error) {
	var out RecordDetail
	if err := c.do(ctx, http.MethodGet, "/api/food-records/"+url.PathEscape(productID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyRecord(ctx context.Context, productID string) (*Verification, error) {
	var out Verification
	if err := c.do(ctx, http.MethodGet, "/api/food-records/"+url.PathEscape(productID)+"/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		// metadata must reach the server unescaped or its hash changes
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var st Status
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &st) == nil && st.Message != "" {
			msg = st.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
