package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/lantern/internal/payment"
)

const hashKey = "pwFHCqoQZGmho4w6"

func newGateway(t *testing.T) *payment.Gateway {
	t.Helper()
	gw, err := payment.NewGateway(payment.Config{
		MerchantID:  "3002607",
		HashKey:     hashKey,
		ServiceURL:  "https://payment.example.com/Cashier/AioCheckOut",
		CallbackURL: "https://lantern.example.com/v1/payments/callback",
		ReturnURL:   "https://lantern.example.com/orders",
	})
	if err != nil {
		t.Fatalf("NewGateway() failed: %v", err)
	}
	return gw
}

func validRequest() payment.HandoffRequest {
	return payment.HandoffRequest{
		OrderID:       "0192f1a4-7c3e-7d1a-9b4e-2f6c8a1d3e5b",
		Amount:        1020,
		Description:   "Longshan Temple lanterns",
		PaymentMethod: payment.MethodCard,
		Items:         []payment.Item{{Name: "Guangming lantern", Quantity: 1}},
		CreatedAt:     time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC),
	}
}

func TestGatewayCreateHandoff(t *testing.T) {
	gw := newGateway(t)

	t.Run("builds a signed form", func(t *testing.T) {
		handoff, err := gw.CreateHandoff(context.Background(), validRequest())
		if err != nil {
			t.Fatalf("CreateHandoff() failed: %v", err)
		}

		if handoff.RedirectURL != "https://payment.example.com/Cashier/AioCheckOut" {
			t.Errorf("unexpected redirect url %s", handoff.RedirectURL)
		}

		expected := map[string]string{
			"MerchantID":        "3002607",
			"MerchantTradeNo":   "0192f1a4-7c3e-7d1a-9b4e-2f6c8a1d3e5b",
			"MerchantTradeDate": "2026/01/28 09:30:00",
			"TotalAmount":       "1020",
			"ChoosePayment":     "Credit",
			"ItemName":          "Guangming lantern x 1",
			"ReturnURL":         "https://lantern.example.com/v1/payments/callback",
			"ClientBackURL":     "https://lantern.example.com/orders",
		}
		for k, want := range expected {
			if got := handoff.Fields[k]; got != want {
				t.Errorf("field %s: expected %q, got %q", k, want, got)
			}
		}

		if !payment.Verify(handoff.Fields, hashKey) {
			t.Error("expected hand-off fields to carry a valid CheckMacValue")
		}
	})

	t.Run("rejects unusable requests", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*payment.HandoffRequest)
		}{
			{"zero amount", func(r *payment.HandoffRequest) { r.Amount = 0 }},
			{"negative amount", func(r *payment.HandoffRequest) { r.Amount = -5 }},
			{"unknown method", func(r *payment.HandoffRequest) { r.PaymentMethod = "barter" }},
			{"missing order", func(r *payment.HandoffRequest) { r.OrderID = "" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := validRequest()
				tt.mutate(&req)

				if _, err := gw.CreateHandoff(context.Background(), req); !errors.Is(err, payment.ErrSetupRejected) {
					t.Errorf("expected ErrSetupRejected, got %v", err)
				}
			})
		}
	})
}

func signedCallback(fields map[string]string) map[string]string {
	fields["CheckMacValue"] = payment.Sign(fields, hashKey)
	return fields
}

func TestGatewayVerifyCallback(t *testing.T) {
	gw := newGateway(t)

	t.Run("paid callback", func(t *testing.T) {
		conf, err := gw.VerifyCallback(signedCallback(map[string]string{
			"MerchantID":      "3002607",
			"MerchantTradeNo": "order-1",
			"TradeNo":         "2601281030001",
			"RtnCode":         "1",
			"RtnMsg":          "Succeeded",
			"TradeAmt":        "1020",
		}))
		if err != nil {
			t.Fatalf("VerifyCallback() failed: %v", err)
		}

		if conf.OrderID != "order-1" || conf.TransactionID != "2601281030001" {
			t.Errorf("unexpected confirmation %+v", conf)
		}
		if conf.Status != payment.StatusPaid || conf.Amount != 1020 {
			t.Errorf("expected paid 1020, got %s %d", conf.Status, conf.Amount)
		}
	})

	t.Run("non-success code is a failure", func(t *testing.T) {
		conf, err := gw.VerifyCallback(signedCallback(map[string]string{
			"MerchantTradeNo": "order-1",
			"TradeNo":         "2601281030002",
			"RtnCode":         "10100058",
			"RtnMsg":          "Card declined",
		}))
		if err != nil {
			t.Fatalf("VerifyCallback() failed: %v", err)
		}
		if conf.Status != payment.StatusFailed {
			t.Errorf("expected failed, got %s", conf.Status)
		}
	})

	t.Run("tampered field fails verification", func(t *testing.T) {
		fields := signedCallback(map[string]string{
			"MerchantTradeNo": "order-1",
			"RtnCode":         "0",
			"TradeAmt":        "1020",
		})
		fields["RtnCode"] = "1"

		if _, err := gw.VerifyCallback(fields); !errors.Is(err, payment.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("missing mac fails verification", func(t *testing.T) {
		if _, err := gw.VerifyCallback(map[string]string{"MerchantTradeNo": "order-1"}); !errors.Is(err, payment.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("other merchant is rejected", func(t *testing.T) {
		fields := signedCallback(map[string]string{
			"MerchantID":      "9999999",
			"MerchantTradeNo": "order-1",
			"RtnCode":         "1",
		})
		if _, err := gw.VerifyCallback(fields); !errors.Is(err, payment.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("missing order id is malformed", func(t *testing.T) {
		fields := signedCallback(map[string]string{"RtnCode": "1", "TradeNo": "2601281030003"})
		if _, err := gw.VerifyCallback(fields); !errors.Is(err, payment.ErrMalformedCallback) {
			t.Errorf("expected ErrMalformedCallback, got %v", err)
		}
	})

	t.Run("missing transaction reference is malformed", func(t *testing.T) {
		fields := signedCallback(map[string]string{
			"MerchantTradeNo": "order-1",
			"RtnCode":         "1",
			"TradeAmt":        "1020",
		})
		if _, err := gw.VerifyCallback(fields); !errors.Is(err, payment.ErrMalformedCallback) {
			t.Errorf("expected ErrMalformedCallback, got %v", err)
		}
	})
}

func TestSign(t *testing.T) {
	a := payment.Sign(map[string]string{"b": "2", "a": "1 & 3"}, hashKey)
	b := payment.Sign(map[string]string{"a": "1 & 3", "b": "2", "CheckMacValue": "ignored"}, hashKey)
	if a != b {
		t.Error("expected signature to ignore key order and existing CheckMacValue")
	}
	if c := payment.Sign(map[string]string{"a": "1 & 3", "b": "2"}, "other-key"); c == a {
		t.Error("expected different key to change signature")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
