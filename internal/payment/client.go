package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PSPの生のレスポンス。successの集合に入らないstatusは全部失敗扱い。
type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ChargeRequest struct {
	AmountCents        int64             `json:"amount"`
	Currency           string            `json:"currency"`
	PaymentMethodToken string            `json:"payment_method"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// PSPとの契約。HTTP実装とテスト用のfakeがこれを満たす。
type Client interface {
	CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (Charge, error)
	CreateRefund(ctx context.Context, chargeID string) (Refund, error)
}

const (
	chargeStatusSucceeded = "succeeded"
	//同じIdempotency-Keyの再送。元のチャージを返してくるので成功扱い
	chargeStatusDuplicate = "duplicate"

	refundStatusSucceeded = "succeeded"
)

// PSPClientGateway はPSPクライアントをGatewayに適合させる。
// エラー分類だけがこの層の仕事で、リトライは呼び出し元に任せる。
type PSPClientGateway struct {
	client Client
}

func NewPSPClientGateway(client Client) *PSPClientGateway {
	return &PSPClientGateway{client: client}
}

func (g *PSPClientGateway) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	charge, err := g.client.CreateCharge(ctx, ChargeRequest{
		AmountCents:        req.AmountCents,
		Currency:           req.Currency,
		PaymentMethodToken: req.PaymentMethodToken,
		Metadata:           req.Metadata,
	}, req.IdempotencyKey)

	if err != nil {
		//通信エラー・タイムアウトは課金されたか不明。同じキーで再試行してもらう
		return CaptureResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch charge.Status {
	case chargeStatusSucceeded, chargeStatusDuplicate:
		return CaptureResult{PaymentRef: charge.ID}, nil
	default:
		//PSPが明確に返事をしたのでリトライ不可
		return CaptureResult{}, fmt.Errorf("%w: status=%s", ErrDeclined, charge.Status)
	}
}

func (g *PSPClientGateway) Refund(ctx context.Context, paymentRef string) (RefundResult, error) {
	refund, err := g.client.CreateRefund(ctx, paymentRef)
	if err != nil {
		//返金失敗は飲み込まず必ず呼び出し元へ返す
		return RefundResult{}, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	if refund.Status != refundStatusSucceeded {
		return RefundResult{}, fmt.Errorf("%w: status=%s", ErrRefundFailed, refund.Status)
	}

	return RefundResult{RefundRef: refund.ID}, nil
}

// HTTPClient はRESTのPSPを叩くClient実装。
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (Charge, error) {
	var charge Charge
	if err := c.post(ctx, "/v1/charges", req, idempotencyKey, &charge); err != nil {
		return Charge{}, err
	}
	return charge, nil
}

func (c *HTTPClient) CreateRefund(ctx context.Context, chargeID string) (Refund, error) {
	var refund Refund
	body := map[string]string{"charge": chargeID}
	if err := c.post(ctx, "/v1/refunds", body, "", &refund); err != nil {
		return Refund{}, err
	}
	return refund, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, idempotencyKey string, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	//4xxでもPSPは{id,status}を返す。5xxだけ通信障害扱い
	if resp.StatusCode >= 500 {
		return fmt.Errorf("psp returned %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
