package services

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"natours_echo/internal/config"
)

// Gateway is the part of the payment provider the checkout flow needs.
type Gateway interface {
	CreateTransaction(req *snap.Request) (*snap.Response, error)
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error)
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	serverKey  string
	clientKey  string
	env        midtrans.EnvironmentType
}

func NewMidtransService(cfg *config.Config) *MidtransService {
	env := midtrans.Sandbox
	if cfg.MidtransIsProduction {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.MidtransServerKey, env)

	var c coreapi.Client
	c.New(cfg.MidtransServerKey, env)

	midtrans.ServerKey = cfg.MidtransServerKey
	midtrans.ClientKey = cfg.MidtransClientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  cfg.MidtransServerKey,
		clientKey:  cfg.MidtransClientKey,
		env:        env,
	}
}

// ClientKey is the public key the browser checkout script needs.
func (s *MidtransService) ClientKey() string { return s.clientKey }

// SnapScriptURL is the checkout script of the configured environment.
func (s *MidtransService) SnapScriptURL() string {
	return s.env.SnapURL() + "/snap.js"
}

// CreateTransaction creates a Snap transaction and returns its token and
// redirect URL
func (s *MidtransService) CreateTransaction(req *snap.Request) (*snap.Response, error) {
	resp, err := s.SnapClient.CreateTransaction(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans create transaction: %v", err.GetMessage())
	}
	return resp, nil
}

// CheckTransaction fetches the current status of an order
func (s *MidtransService) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, err := s.CoreClient.CheckTransaction(orderID)
	if err != nil {
		return nil, fmt.Errorf("midtrans check transaction: %v", err.GetMessage())
	}
	return resp, nil
}

// VerifySignature checks a notification signature:
// SHA512(order_id + status_code + gross_amount + server_key).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return subtle.ConstantTimeCompare([]byte(Signature(orderID, statusCode, grossAmount, s.serverKey)), []byte(signatureKey)) == 1
}

func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
