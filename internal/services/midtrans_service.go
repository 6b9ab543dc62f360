package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"serviceportal/internal/models"
)

// GatewayState is the normalized state of one checkout at the gateway
type GatewayState string

const (
	GatewayStatePending GatewayState = "pending"
	GatewayStatePaid    GatewayState = "paid"
	GatewayStateFailed  GatewayState = "failed"
	GatewayStateUnknown GatewayState = "unknown"
)

// CheckoutRequest is what the orchestrator asks the gateway to open.
// AmountMinor is in minor units (cents) of Currency.
type CheckoutRequest struct {
	Reference   string
	AmountMinor int64
	Currency    string
	ItemName    string
	PayerName   string
	PayerEmail  string
	Metadata    map[string]string
	FinishURL   string
}

type CheckoutResponse struct {
	Token       string
	RedirectURL string
	Raw         json.RawMessage
}

// TransactionStatus is the gateway's view of a reference
type TransactionStatus struct {
	Reference     string
	TransactionID string
	State         GatewayState
	RawStatus     string
	PaymentType   string
	GrossAmount   string
}

// Gateway is the external payment provider
type Gateway interface {
	Name() models.PaymentGateway
	Initialize(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	Verify(ctx context.Context, reference string) (*TransactionStatus, error)
	Cancel(ctx context.Context, reference string) error
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}

type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	serverKey  string
}

func NewMidtransService(serverKey, clientKey string, production bool) *MidtransService {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	midtrans.ServerKey = serverKey
	midtrans.ClientKey = clientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  serverKey,
	}
}

func (s *MidtransService) Name() models.PaymentGateway {
	return models.PaymentGatewayMidtrans
}

// wholeUnits converts minor units to the whole-rupiah amount Snap expects
func wholeUnits(minor int64) int64 {
	return (minor + 50) / 100
}

// Initialize creates a Snap transaction and returns the redirect URL and token
func (s *MidtransService) Initialize(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	amount := wholeUnits(req.AmountMinor)
	param := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.PayerName,
			Email: req.PayerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Reference,
				Name:  req.ItemName,
				Price: amount,
				Qty:   1,
			},
		},
		CustomField1: req.Metadata["request_id"],
		CustomField2: req.Metadata["stage"],
		CustomField3: req.Metadata["payer_name"],
	}
	if req.FinishURL != "" {
		param.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}

	resp, merr := s.SnapClient.CreateTransaction(param)
	if merr != nil {
		return nil, fmt.Errorf("midtrans create transaction error: %v", merr.Message)
	}

	raw, _ := json.Marshal(resp)
	return &CheckoutResponse{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		Raw:         raw,
	}, nil
}

// Verify asks the core API for the status of an order
func (s *MidtransService) Verify(ctx context.Context, reference string) (*TransactionStatus, error) {
	resp, merr := s.CoreClient.CheckTransaction(reference)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return &TransactionStatus{Reference: reference, State: GatewayStateUnknown}, nil
		}
		return nil, fmt.Errorf("midtrans check transaction error: %v", merr.Message)
	}
	return &TransactionStatus{
		Reference:     reference,
		TransactionID: resp.TransactionID,
		State:         MapMidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		RawStatus:     resp.TransactionStatus,
		PaymentType:   resp.PaymentType,
		GrossAmount:   resp.GrossAmount,
	}, nil
}

// Cancel cancels a pending order
func (s *MidtransService) Cancel(ctx context.Context, reference string) error {
	if _, merr := s.CoreClient.CancelTransaction(reference); merr != nil {
		return fmt.Errorf("midtrans cancel transaction error: %v", merr.Message)
	}
	return nil
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + server key)
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return checkSignature(orderID, statusCode, grossAmount, s.serverKey, signature)
}

func checkSignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	if signature == "" || serverKey == "" {
		return false
	}
	got := SignNotification(orderID, statusCode, grossAmount, serverKey)
	want := strings.ToLower(signature)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// SignNotification computes the signature Midtrans puts on notifications
func SignNotification(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

// MapMidtransStatus normalizes transaction_status (and fraud_status for cards)
func MapMidtransStatus(transactionStatus, fraudStatus string) GatewayState {
	switch transactionStatus {
	case "settlement":
		return GatewayStatePaid
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return GatewayStatePaid
		}
		return GatewayStatePending
	case "pending", "authorize":
		return GatewayStatePending
	case "deny", "cancel", "expire", "failure", "refund", "partial_refund":
		return GatewayStateFailed
	}
	return GatewayStateUnknown
}
