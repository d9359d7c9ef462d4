package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RPCClient is a minimal EVM JSON-RPC client. Only the read path needed for
// payment verification is implemented.
type RPCClient struct {
	URL    string
	client *http.Client
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		URL:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// RPCTransaction is the subset of eth_getTransactionByHash we verify against.
type RPCTransaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	op := func() (struct{}, error) {
		payload, err := json.Marshal(rpcRequest{
			JSONRPC: "2.0",
			Method:  method,
			Params:  params,
			ID:      1,
		})
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.URL, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, err
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(body, &rpcResp); err != nil {
			return struct{}{}, err
		}
		if rpcResp.Error != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
		}
		if result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	return err
}

// GetTransactionByHash fetches a transaction; nil result means the node does
// not know the hash.
func (c *RPCClient) GetTransactionByHash(ctx context.Context, hash string) (*RPCTransaction, error) {
	var tx *RPCTransaction
	if err := c.call(ctx, "eth_getTransactionByHash", []interface{}{hash}, &tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// HexToBig parses a 0x-prefixed hex quantity.
func HexToBig(hexStr string) (*big.Int, error) {
	s := strings.TrimPrefix(strings.ToLower(hexStr), "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	out, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value: %s", hexStr)
	}
	return out, nil
}
