package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"stablevault/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Gateway using HTTP JSON-RPC 2.0 against the wallet
// provider endpoint.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ Gateway = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new chain gateway client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start))
	}()

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried: a wallet rejection or unsupported
			// method will not succeed on a second attempt.
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Allowance reads the current ERC-20 allowance via eth_call.
func (c *HTTPClient) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	data, err := allowanceData(owner, spender)
	if err != nil {
		return nil, err
	}

	params := []interface{}{
		map[string]interface{}{
			"to":   token,
			"data": hexBytes(data),
		},
		"latest",
	}

	var result string
	if err := c.call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}

	return parseHexQuantity(result)
}

// sendCallsResult is the raw RPC response for wallet_sendCalls.
type sendCallsResult struct {
	ID string `json:"id"`
}

// SendCalls submits an atomic call batch via wallet_sendCalls (EIP-5792).
func (c *HTTPClient) SendCalls(ctx context.Context, from string, chainID int64, calls []Call) (string, error) {
	encoded := make([]map[string]interface{}, len(calls))
	for i, call := range calls {
		m := map[string]interface{}{
			"to":   call.To,
			"data": hexBytes(call.Data),
		}
		if call.Value != nil {
			m["value"] = hexQuantity(call.Value)
		}
		encoded[i] = m
	}

	params := []interface{}{
		map[string]interface{}{
			"version":        "2.0.0",
			"from":           from,
			"chainId":        fmt.Sprintf("0x%x", chainID),
			"atomicRequired": true,
			"calls":          encoded,
		},
	}

	var result sendCallsResult
	if err := c.call(ctx, "wallet_sendCalls", params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("wallet_sendCalls returned empty batch id")
	}
	return result.ID, nil
}

// callsStatusResult is the raw RPC response for wallet_getCallsStatus.
type callsStatusResult struct {
	Status   int             `json:"status"`
	Receipts []receiptResult `json:"receipts"`
}

// receiptResult is a raw transaction receipt.
type receiptResult struct {
	Status          string `json:"status"` // "0x1" | "0x0"
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
}

func (r receiptResult) toReceipt() Receipt {
	receipt := Receipt{
		TransactionHash: r.TransactionHash,
		Success:         r.Status == "0x1",
	}
	if n, err := parseHexQuantity(r.BlockNumber); err == nil {
		receipt.BlockNumber = n.Int64()
	}
	return receipt
}

// CallsStatus queries the state of a call batch via wallet_getCallsStatus.
func (c *HTTPClient) CallsStatus(ctx context.Context, batchID string) (*CallsStatus, error) {
	var result callsStatusResult
	if err := c.call(ctx, "wallet_getCallsStatus", []interface{}{batchID}, &result); err != nil {
		return nil, err
	}

	status := &CallsStatus{StatusCode: result.Status}
	for _, r := range result.Receipts {
		status.Receipts = append(status.Receipts, r.toReceipt())
	}
	return status, nil
}

// SendTransaction submits a single call via eth_sendTransaction.
func (c *HTTPClient) SendTransaction(ctx context.Context, from string, call Call) (string, error) {
	tx := map[string]interface{}{
		"from": from,
		"to":   call.To,
		"data": hexBytes(call.Data),
	}
	if call.Value != nil {
		tx["value"] = hexQuantity(call.Value)
	}

	var txHash string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{tx}, &txHash); err != nil {
		return "", err
	}
	if txHash == "" {
		return "", fmt.Errorf("eth_sendTransaction returned empty hash")
	}
	return txHash, nil
}

// TransactionReceipt retrieves a receipt via eth_getTransactionReceipt.
// Returns (nil, nil) while the transaction is pending.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var result *receiptResult
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	receipt := result.toReceipt()
	if receipt.TransactionHash == "" {
		receipt.TransactionHash = txHash
	}
	return &receipt, nil
}

// hexBytes renders data as a 0x-prefixed hex string.
func hexBytes(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// hexQuantity renders a big integer as a 0x-prefixed hex quantity.
func hexQuantity(n *big.Int) string {
	return "0x" + n.Text(16)
}

// parseHexQuantity parses a 0x-prefixed hex quantity into a big integer.
// An empty or "0x" result parses as zero.
func parseHexQuantity(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("parse hex quantity %q", s)
	}
	return n, nil
}
