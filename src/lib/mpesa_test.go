package lib

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := map[string]string{
		"0712345678":     "254712345678",
		"0112345678":     "254112345678",
		"+254712345678":  "254712345678",
		"254712345678":   "254712345678",
		"0712 345 678":   "254712345678",
		"+254-712345678": "254712345678",
	}
	for input, want := range cases {
		got, err := NormalizePhoneNumber(input)
		assert.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	for _, input := range []string{"", "12345", "0812345678", "25471234567", "notaphone"} {
		_, err := NormalizePhoneNumber(input)
		assert.ErrorIs(t, err, ErrInvalidPhoneNumber, input)
	}
}

func TestMpesaPassword(t *testing.T) {
	got := MpesaPassword("174379", "passkey", "20260829120000")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20260829120000"))
	assert.Equal(t, want, got)
}

func TestParseSTKCallback(t *testing.T) {
	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1500.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`
	cb, err := ParseSTKCallback(body)
	require.NoError(t, err)
	assert.True(t, cb.Successful())
	assert.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", cb.MerchantRequestID)
	assert.Equal(t, 1500.0, cb.Amount)
	assert.Equal(t, "NLJ7RT61SV", cb.MpesaReceiptNumber)
	assert.Equal(t, "254708374149", cb.PhoneNumber)
}

func TestParseSTKCallbackFailure(t *testing.T) {
	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-2",
				"CheckoutRequestID": "ws_CO_191220191020363999",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user."
			}
		}
	}`
	cb, err := ParseSTKCallback(body)
	require.NoError(t, err)
	assert.False(t, cb.Successful())
	assert.Equal(t, int64(1032), cb.ResultCode)
	assert.Equal(t, "Request cancelled by user.", cb.ResultDesc)
	assert.Empty(t, cb.MpesaReceiptNumber)
}

func TestParseSTKCallbackInvalidBody(t *testing.T) {
	_, err := ParseSTKCallback("not json")
	assert.Error(t, err)

	_, err = ParseSTKCallback(`{"Body": {}}`)
	assert.Error(t, err)
}

func TestSTKPush(t *testing.T) {
	var pushed map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token": "test-token", "expires_in": "3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			if err := json.NewDecoder(r.Body).Decode(&pushed); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResponseCode": "0",
				"ResponseDescription": "Success. Request accepted for processing",
				"CustomerMessage": "Success. Request accepted for processing"
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewMpesaClient(&MpesaClient{
		HTTPClient:     server.Client(),
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/webhook/mpesa",
	})

	res, err := client.STKPush(context.Background(), &STKPushInput{
		Amount:           1500,
		PhoneNumber:      "0712345678",
		AccountReference: "SB-3F2A9C1D",
		Description:      "Safari Buddy booking SB-3F2A9C1D",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)

	assert.Equal(t, "254712345678", pushed["PhoneNumber"])
	assert.Equal(t, "174379", pushed["PartyB"])
	assert.Equal(t, float64(1500), pushed["Amount"])
	assert.Equal(t, "CustomerPayBillOnline", pushed["TransactionType"])
}

func TestSTKPushRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			w.Write([]byte(`{"access_token": "test-token", "expires_in": "3599"}`))
		default:
			w.Write([]byte(`{"ResponseCode": "1", "ResponseDescription": "Invalid shortcode"}`))
		}
	}))
	defer server.Close()

	client := NewMpesaClient(&MpesaClient{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		Shortcode:  "0",
		Passkey:    "passkey",
	})

	_, err := client.STKPush(context.Background(), &STKPushInput{
		Amount:      100,
		PhoneNumber: "0712345678",
	})
	assert.ErrorContains(t, err, "Invalid shortcode")
}

func TestSTKQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			w.Write([]byte(`{"access_token": "test-token", "expires_in": "3599"}`))
		case "/mpesa/stkpushquery/v1/query":
			w.Write([]byte(`{
				"ResponseCode": "0",
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": "1032",
				"ResultDesc": "Request cancelled by user."
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewMpesaClient(&MpesaClient{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		Shortcode:  "174379",
		Passkey:    "passkey",
	})

	res, err := client.STKQuery(context.Background(), "ws_CO_191220191020363925")
	require.NoError(t, err)
	assert.Equal(t, "1032", res.ResultCode)
	assert.Equal(t, "Request cancelled by user.", res.ResultDesc)
}
