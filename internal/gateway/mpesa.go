package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lostid-service/config"
	"lostid-service/internal/errs"
	"lostid-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"
)

// M-Pesa timestamps are East Africa Time regardless of server locale.
var nairobi = time.FixedZone("EAT", 3*60*60)

// Client talks to the M-Pesa Daraja API
type Client struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new M-Pesa gateway client
func NewClient(cfg config.MpesaConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// STKPushResult is the provider acknowledgment of an initiation request
type STKPushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResult is the provider's answer to a transaction status query
type STKQueryResult struct {
	ResponseCode      string `json:"ResponseCode"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type apiError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// Password derives the provider-required password for a shortcode at the
// given time: base64(shortcode + passkey + YYYYMMDDHHMMSS).
func Password(shortcode, passkey string, t time.Time) (password, timestamp string) {
	timestamp = t.In(nairobi).Format(timestampLayout)
	password = base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
	return password, timestamp
}

// fetchToken obtains a bearer token with the service credentials.
// Tokens are not cached; one is fetched per outbound request.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("token").Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", errs.GatewayAuth("failed to build token request").WithCause(err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.GatewayAuth("token request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.GatewayAuth("failed to read token response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("M-Pesa token request rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return "", errs.GatewayAuth(fmt.Sprintf("token request returned status %d", resp.StatusCode))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", errs.GatewayAuth("malformed token response").WithCause(err)
	}
	if token.AccessToken == "" {
		return "", errs.GatewayAuth("token response contained no access token")
	}

	return token.AccessToken, nil
}

// InitiateSTKPush sends a payment prompt to the subscriber's phone.
// On success the provider acknowledges with a CheckoutRequestID that keys
// the payment record until the asynchronous callback arrives.
func (c *Client) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef string) (*STKPushResult, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := Password(c.cfg.Shortcode, c.cfg.Passkey, c.now())

	pushReq := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   "Payment for Lost Item",
	}

	var result STKPushResult
	if err := c.post(ctx, stkPushPath, "stkpush", token, pushReq, &result); err != nil {
		return nil, err
	}

	if result.CheckoutRequestID == "" {
		return nil, errs.GatewayRequest("provider acknowledgment missing CheckoutRequestID")
	}

	c.logger.Info("STK push acknowledged",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("response_code", result.ResponseCode))

	return &result, nil
}

// QuerySTKStatus asks the provider for the outcome of a previously initiated
// push. Used by the reconciler for payments whose callback never arrived.
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResult, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := Password(c.cfg.Shortcode, c.cfg.Passkey, c.now())

	queryReq := stkQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var result STKQueryResult
	if err := c.post(ctx, stkQueryPath, "query", token, queryReq, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) post(ctx context.Context, path, operation, token string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return errs.GatewayRequest("failed to marshal request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errs.GatewayRequest("failed to build request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.GatewayRequest("provider request failed").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.GatewayRequest("failed to read provider response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		var provErr apiError
		if jsonErr := json.Unmarshal(respBody, &provErr); jsonErr == nil && provErr.ErrorMessage != "" {
			return errs.GatewayRequest(provErr.ErrorMessage)
		}
		c.logger.Error("M-Pesa request rejected",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return errs.GatewayRequest(fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.GatewayRequest("malformed provider response").WithCause(err)
	}

	return nil
}
