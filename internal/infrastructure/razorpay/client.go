package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sanosuguru/go-turf-reservation/internal/config"
	"github.com/sanosuguru/go-turf-reservation/internal/domain/payment"
)

// Client は Razorpay Orders API の薄いRESTクライアント
// 注文作成と決済コールバックの署名検証のみを扱う
type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// NewClient は新しいClientを作成する
func NewClient(cfg *config.PaymentConfig) *Client {
	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   cfg.BaseURL,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

type createOrderRequest struct {
	Amount   int    `json:"amount"` // パイサ単位
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder はゲートウェイに注文を作成する
// 予約状態には副作用を持たず、失敗時は呼び出し側で安全にリトライできる
func (c *Client) CreateOrder(ctx context.Context, amount int, currency, receipt string) (*payment.Order, error) {
	// Razorpay の金額は最小通貨単位（パイサ）
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount * 100,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("注文リクエストの生成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("注文リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status=%d", payment.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("注文作成がゲートウェイに拒否されました: status=%d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("注文レスポンスの解析に失敗: %w", err)
	}
	return &payment.Order{
		GatewayOrderID: out.ID,
		Amount:         out.Amount / 100,
		Currency:       out.Currency,
		Receipt:        out.Receipt,
	}, nil
}

// VerifySignature は Razorpay 方式の署名を検証する
// 期待値は HMAC-SHA256(orderID + "|" + paymentID, keySecret) の16進表現
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

var (
	_ payment.Gateway           = (*Client)(nil)
	_ payment.SignatureVerifier = (*Client)(nil)
)
