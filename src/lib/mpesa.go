package lib

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"safaribuddy/src/config"
	"safaribuddy/src/types"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"

	mpesaTokenCacheKey = "mpesa:access_token"
)

var ErrInvalidPhoneNumber = errors.New("phone number is not a valid Kenyan mobile number")

var kenyanMobile = regexp.MustCompile(`^254(7|1)\d{8}$`)

type MpesaClient struct {
	HTTPClient     *http.Client
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

var mpesaClient *MpesaClient

func GetMpesaClient() *MpesaClient {
	if mpesaClient != nil {
		return mpesaClient
	}
	baseURL := MpesaSandboxURL
	if os.Getenv("MPESA_ENV") == "production" {
		baseURL = MpesaProductionURL
	}
	c := &MpesaClient{
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		BaseURL:        baseURL,
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
	}
	mpesaClient = c
	return c
}

// NewMpesaClient Replace the client with a custom instance
func NewMpesaClient(c *MpesaClient) *MpesaClient {
	mpesaClient = c
	return mpesaClient
}

// NormalizePhoneNumber converts the common local formats (07xx, 01xx, +254)
// into the canonical 254 form the payments API requires.
func NormalizePhoneNumber(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = "254" + p[1:]
	}
	if !kenyanMobile.MatchString(p) {
		return "", ErrInvalidPhoneNumber
	}
	return p, nil
}

// MpesaPassword builds the Lipa Na M-Pesa password for the given timestamp.
func MpesaPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

func (m *MpesaClient) AccessToken(ctx context.Context) (string, error) {
	rd := GetRedisClient()
	if rd != nil {
		if cached, err := rd.Get(ctx, mpesaTokenCacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}
	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", m.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(m.ConsumerKey + ":" + m.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	res, err := m.HTTPClient.Do(req)
	if err != nil {
		log.Printf("[mpesa] Error requesting access token: %s\n", err.Error())
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d: %s", res.StatusCode, string(body))
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", errors.New("token response missing access_token")
	}
	if rd != nil {
		expiresIn := gjson.GetBytes(body, "expires_in").Int()
		if expiresIn <= 0 {
			expiresIn = 3599
		}
		ttl := time.Duration(expiresIn-60) * time.Second
		if err := rd.SetEx(ctx, mpesaTokenCacheKey, token, ttl).Err(); err != nil {
			log.Printf("[mpesa] Failed to cache access token: %s\n", err.Error())
		}
	}
	return token, nil
}

type STKPushInput struct {
	Amount           float64
	PhoneNumber      string
	AccountReference string
	Description      string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush sends a payment prompt to the customer's phone.
func (m *MpesaClient) STKPush(ctx context.Context, input *STKPushInput) (*STKPushResponse, error) {
	phone, err := NormalizePhoneNumber(input.PhoneNumber)
	if err != nil {
		return nil, err
	}
	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().Format(config.MPESA_TIMESTAMP_FORMAT)
	payload := map[string]any{
		"BusinessShortCode": m.Shortcode,
		"Password":          MpesaPassword(m.Shortcode, m.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            int64(input.Amount),
		"PartyA":            phone,
		"PartyB":            m.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       m.CallbackURL,
		"AccountReference":  input.AccountReference,
		"TransactionDesc":   input.Description,
	}
	body, err := m.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload)
	if err != nil {
		return nil, err
	}
	var out STKPushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("stk push rejected: %s", out.ResponseDescription)
	}
	return &out, nil
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// STKQuery checks the status of a previously initiated push.
func (m *MpesaClient) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().Format(config.MPESA_TIMESTAMP_FORMAT)
	payload := map[string]any{
		"BusinessShortCode": m.Shortcode,
		"Password":          MpesaPassword(m.Shortcode, m.Passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	body, err := m.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload)
	if err != nil {
		return nil, err
	}
	var out STKQueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MpesaClient) post(ctx context.Context, path string, token string, payload map[string]any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := m.HTTPClient.Do(req)
	if err != nil {
		log.Printf("[mpesa] Error on request to %s: %s\n", path, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed with status %d: %s", path, res.StatusCode, string(body))
	}
	return body, nil
}

type STKCallback struct {
	MerchantRequestID  string
	CheckoutRequestID  string
	ResultCode         int64
	ResultDesc         string
	Amount             float64
	MpesaReceiptNumber string
	TransactionDate    string
	PhoneNumber        string
}

func (c *STKCallback) Successful() bool {
	return c.ResultCode == 0
}

// ParseSTKCallback extracts the fields of an stkCallback notification body.
func ParseSTKCallback(body string) (*STKCallback, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("invalid json body")
	}
	cb := gjson.Get(body, "Body.stkCallback")
	if !cb.Exists() {
		return nil, errors.New("body is missing stkCallback")
	}
	out := STKCallback{
		MerchantRequestID: cb.Get("MerchantRequestID").String(),
		CheckoutRequestID: cb.Get("CheckoutRequestID").String(),
		ResultCode:        cb.Get("ResultCode").Int(),
		ResultDesc:        cb.Get("ResultDesc").String(),
	}
	for _, item := range cb.Get("CallbackMetadata.Item").Array() {
		name := item.Get("Name").String()
		value := item.Get("Value")
		switch name {
		case "Amount":
			out.Amount = value.Float()
		case "MpesaReceiptNumber":
			out.MpesaReceiptNumber = value.String()
		case "TransactionDate":
			out.TransactionDate = value.String()
		case "PhoneNumber":
			out.PhoneNumber = value.String()
		}
	}
	return &out, nil
}

// MpesaCallbackAck is the acknowledgement body the payments API expects in
// response to a callback.
func MpesaCallbackAck() types.JSONB {
	return types.JSONB{"ResultCode": 0, "ResultDesc": "Accepted"}
}
