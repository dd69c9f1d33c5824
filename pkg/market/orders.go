package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

// OrderClient posts mirror orders to the exchange. Implementations must
// surface failures that the error taxonomy can classify.
type OrderClient interface {
	PostOrder(ctx context.Context, args types.OrderArgs) error
}

// ClobClient posts orders to the exchange's CLOB HTTP API.
type ClobClient struct {
	host   string
	apiKey string
	client *http.Client
}

func NewClobClient(host, apiKey string, timeout time.Duration) *ClobClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ClobClient{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type orderRequest struct {
	TokenID string  `json:"tokenID"`
	Side    string  `json:"side"`
	Size    float64 `json:"size"`
	Price   float64 `json:"price"`
	Type    string  `json:"type"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderID"`
	Error   string `json:"errorMsg"`
}

// PostOrder submits a single market order. A rejected order is an API
// error whose retryability follows the HTTP status; an explicit
// insufficient-balance rejection is final and critical.
func (c *ClobClient) PostOrder(ctx context.Context, args types.OrderArgs) error {
	payload, err := json.Marshal(orderRequest{
		TokenID: args.Asset,
		Side:    string(args.Side),
		Size:    args.Size,
		Price:   args.Price,
		Type:    "FOK",
	})
	if err != nil {
		return errors.NewExecutionError("market", "PostOrder", "failed to encode order", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/order", bytes.NewReader(payload))
	if err != nil {
		return errors.NewExecutionError("market", "PostOrder", "failed to build order request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewNetworkError("market", "PostOrder", "order request failed", err,
			errors.WithMetadata("asset", args.Asset))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError("market", "PostOrder", "failed to read order response", err)
	}

	if resp.StatusCode >= 400 {
		return errors.NewAPIStatusError("market", "PostOrder", resp.StatusCode,
			fmt.Sprintf("order rejected with status %d: %s", resp.StatusCode, string(body)),
			errors.WithMetadata("asset", args.Asset))
	}

	var parsed orderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errors.NewAPIError("market", "PostOrder", "failed to decode order response", err)
	}
	if !parsed.Success {
		if containsInsufficientBalance(parsed.Error) {
			return errors.NewInsufficientFundsError("market", "PostOrder", parsed.Error,
				errors.WithMetadata("asset", args.Asset))
		}
		return errors.NewExecutionError("market", "PostOrder", "order not accepted: "+parsed.Error, nil,
			errors.WithMetadata("asset", args.Asset))
	}

	logger.Sugar.Infow("Order posted",
		"order_id", parsed.OrderID,
		"asset", args.Asset,
		"side", args.Side,
		"size", args.Size,
		"price", args.Price,
	)
	return nil
}

func containsInsufficientBalance(message string) bool {
	lowered := bytes.ToLower([]byte(message))
	return bytes.Contains(lowered, []byte("insufficient")) && bytes.Contains(lowered, []byte("balance"))
}
