package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zerowastemarket/checkout/internal/payment/domain"
)

// Client talks to the external payment processor's intent endpoint.
type Client struct {
	log     *slog.Logger
	httpc   *http.Client
	baseURL string
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:     log,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

type createIntentReq struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
}

type createIntentResp struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

func (c *Client) CreateIntent(ctx context.Context, orderID string, amountCents int64) (domain.Intent, error) {
	body, err := json.Marshal(createIntentReq{OrderID: orderID, AmountCents: amountCents})
	if err != nil {
		return domain.Intent{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/intents", bytes.NewReader(body))
	if err != nil {
		return domain.Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Intent{}, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out createIntentResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Intent{}, fmt.Errorf("%w: decode: %v", domain.ErrGatewayUnavailable, err)
	}
	if out.Reference == "" {
		return domain.Intent{}, fmt.Errorf("%w: empty reference", domain.ErrGatewayUnavailable)
	}
	c.log.Info("payment intent created", "order_id", orderID, "reference", out.Reference)
	return domain.Intent{Reference: out.Reference, RedirectURL: out.RedirectURL}, nil
}
