package execution

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"

	"github.com/polyflip/updown-arb/pkg/types"
)

// zeroAddress is the open taker for public orders.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// collateralDecimals converts share/collateral amounts to the raw
// 6-decimal integer representation the exchange contract uses.
const collateralDecimals = 1e6

// Signer builds EIP-712 signed orders for the exchange contract.
type Signer struct {
	privateKey    *ecdsa.PrivateKey
	address       string
	proxyAddress  string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
}

// SignerConfig holds signing configuration.
type SignerConfig struct {
	PrivateKey    string
	ProxyAddress  string
	SignatureType int
	ChainID       int64
}

// NewSigner parses the key and prepares the order builder. The EOA
// address derives from the private key; the proxy address, when set,
// becomes the maker/funder.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("derive public key")
	}
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 137
	}

	return &Signer{
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
	}, nil
}

// Address returns the signing EOA address.
func (s *Signer) Address() string {
	return s.address
}

// Sign builds and signs one leg order. Buy orders spend collateral
// (maker amount) for outcome tokens (taker amount); sells the reverse.
func (s *Signer) Sign(req types.OrderRequest) (types.SignedOrder, error) {
	maker := s.address
	if s.proxyAddress != "" {
		maker = s.proxyAddress
	}

	price := req.Price()
	if price <= 0 {
		return types.SignedOrder{}, fmt.Errorf("non-positive price %f", price)
	}

	var makerAmount, takerAmount string
	var side model.Side
	if req.Side == types.Buy {
		side = model.BUY
		makerAmount = rawAmount(price * req.Size)
		takerAmount = rawAmount(req.Size)
	} else {
		side = model.SELL
		makerAmount = rawAmount(req.Size)
		takerAmount = rawAmount(price * req.Size)
	}

	data := &model.OrderData{
		Maker:         maker,
		Taker:         zeroAddress,
		TokenId:       req.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        s.address,
		Expiration:    "0",
		SignatureType: s.signatureType,
	}

	signed, err := s.orderBuilder.BuildSignedOrder(s.privateKey, data, model.CTFExchange)
	if err != nil {
		return types.SignedOrder{}, fmt.Errorf("build signed order: %w", err)
	}

	sideStr := "BUY"
	if signed.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	return types.SignedOrder{
		Salt:          signed.Salt.Int64(),
		Maker:         signed.Maker.Hex(),
		Signer:        signed.Signer.Hex(),
		Taker:         signed.Taker.Hex(),
		TokenID:       signed.TokenId.String(),
		MakerAmount:   signed.MakerAmount.String(),
		TakerAmount:   signed.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    signed.Expiration.String(),
		Nonce:         signed.Nonce.String(),
		FeeRateBps:    signed.FeeRateBps.String(),
		SignatureType: int(signed.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signed.Signature),
	}, nil
}

func rawAmount(amount float64) string {
	return fmt.Sprintf("%d", int64(amount*collateralDecimals))
}
