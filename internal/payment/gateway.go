// Package payment builds signed hosted-form hand-offs for the external payment
// processor and verifies the processor's asynchronous callbacks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSetupRejected is returned when a hand-off cannot be built for the request.
	ErrSetupRejected = errors.New("payment setup rejected")
	// ErrInvalidSignature is returned when a callback fails MAC verification.
	ErrInvalidSignature = errors.New("invalid callback signature")
	// ErrMalformedCallback is returned when required callback fields are missing.
	ErrMalformedCallback = errors.New("malformed callback")
)

const (
	MethodCard             = "card"
	MethodBankTransfer     = "bank_transfer"
	MethodConvenienceStore = "convenience_store"
)

var choosePayment = map[string]string{
	MethodCard:             "Credit",
	MethodBankTransfer:     "ATM",
	MethodConvenienceStore: "CVS",
}

// SupportedMethod reports whether the processor accepts method.
func SupportedMethod(method string) bool {
	_, ok := choosePayment[method]
	return ok
}

// Status is the processor's verdict carried by a callback.
type Status string

const (
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

const tradeDateLayout = "2006/01/02 15:04:05"

type Item struct {
	Name     string
	Quantity int
}

type HandoffRequest struct {
	OrderID       string
	Amount        int64
	Description   string
	PaymentMethod string
	Items         []Item
	CreatedAt     time.Time
}

// Handoff is the form the client posts, unmodified, to RedirectURL.
type Handoff struct {
	RedirectURL string            `json:"redirect_url"`
	Fields      map[string]string `json:"fields"`
}

type Confirmation struct {
	OrderID       string
	TransactionID string
	Status        Status
	Message       string
	Amount        int64
}

type Config struct {
	MerchantID  string
	HashKey     string
	ServiceURL  string
	CallbackURL string
	ReturnURL   string
}

type Gateway struct {
	cfg Config
}

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.MerchantID == "" || cfg.HashKey == "" {
		return nil, errors.New("payment merchant id and hash key are required")
	}
	if cfg.ServiceURL == "" || cfg.CallbackURL == "" {
		return nil, errors.New("payment service and callback urls are required")
	}
	return &Gateway{cfg: cfg}, nil
}

// CreateHandoff builds the signed form payload for an order.
func (g *Gateway) CreateHandoff(ctx context.Context, req HandoffRequest) (Handoff, error) {
	if err := ctx.Err(); err != nil {
		return Handoff{}, err
	}
	if req.OrderID == "" {
		return Handoff{}, fmt.Errorf("%w: order id is required", ErrSetupRejected)
	}
	if req.Amount <= 0 {
		return Handoff{}, fmt.Errorf("%w: amount must be positive, got %d", ErrSetupRejected, req.Amount)
	}
	chosen, ok := choosePayment[req.PaymentMethod]
	if !ok {
		return Handoff{}, fmt.Errorf("%w: unsupported payment method %q", ErrSetupRejected, req.PaymentMethod)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	fields := map[string]string{
		"MerchantID":        g.cfg.MerchantID,
		"MerchantTradeNo":   req.OrderID,
		"MerchantTradeDate": createdAt.UTC().Format(tradeDateLayout),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.FormatInt(req.Amount, 10),
		"TradeDesc":         describe(req.Description),
		"ItemName":          itemNames(req.Items),
		"ReturnURL":         g.cfg.CallbackURL,
		"ChoosePayment":     chosen,
	}
	if g.cfg.ReturnURL != "" {
		fields["ClientBackURL"] = g.cfg.ReturnURL
	}
	fields[macField] = Sign(fields, g.cfg.HashKey)

	return Handoff{RedirectURL: g.cfg.ServiceURL, Fields: fields}, nil
}

// VerifyCallback checks the MAC on a callback and extracts the confirmation.
func (g *Gateway) VerifyCallback(fields map[string]string) (Confirmation, error) {
	if !Verify(fields, g.cfg.HashKey) {
		return Confirmation{}, ErrInvalidSignature
	}
	if merchant, ok := fields["MerchantID"]; ok && merchant != g.cfg.MerchantID {
		return Confirmation{}, fmt.Errorf("%w: unexpected merchant %q", ErrInvalidSignature, merchant)
	}

	orderID := fields["MerchantTradeNo"]
	if orderID == "" {
		return Confirmation{}, fmt.Errorf("%w: MerchantTradeNo is missing", ErrMalformedCallback)
	}
	// TradeNo is what tells a redelivery apart from a new outcome.
	txID := fields["TradeNo"]
	if txID == "" {
		return Confirmation{}, fmt.Errorf("%w: TradeNo is missing", ErrMalformedCallback)
	}

	var amount int64
	if raw := fields["TradeAmt"]; raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Confirmation{}, fmt.Errorf("%w: TradeAmt %q is not an integer", ErrMalformedCallback, raw)
		}
		amount = parsed
	}

	status := StatusFailed
	if fields["RtnCode"] == "1" {
		status = StatusPaid
	}

	return Confirmation{
		OrderID:       orderID,
		TransactionID: txID,
		Status:        status,
		Message:       fields["RtnMsg"],
		Amount:        amount,
	}, nil
}

func describe(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "Lantern offering"
	}
	return desc
}

func itemNames(items []Item) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, fmt.Sprintf("%s x %d", item.Name, item.Quantity))
	}
	return strings.Join(names, "#")
}
