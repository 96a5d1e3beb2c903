// Package domain contains the market model and the token graph used for routing.
package domain

import (
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dex-trader/internal/apperror"
)

const (
	// FeeDenominator is the fee scale: a fee is parts-per-100000 of the amount kept.
	FeeDenominator = 100000

	// NativeWrapFee is the fixed fee of the native/wrapped pseudo-market.
	NativeWrapFee = 10000
)

// Key identifies a market by ticker pair, e.g. "ETH/USDC".
type Key string

func NewKey(base, quote string) Key {
	return Key(strings.ToUpper(base) + "/" + strings.ToUpper(quote))
}

// Market is one tradable pair. Composite markets are synthesised per query
// from a multihop path and are never stored.
type Market struct {
	Key             Key
	BaseAsset       string
	QuoteAsset      string
	BaseAddress     common.Address
	QuoteAddress    common.Address
	ContractAddress common.Address
	ScaleFactor     *big.Int
	PriceFactor     *big.Int
	BaseDecimals    uint8
	QuoteDecimals   uint8
	Fee             uint64
	MinSize         *big.Int
	MaxPrice        *big.Int
	TickSize        *big.Int
	Path            []common.Address
}

// IsComposite reports whether the market spans more than one hop.
func (m Market) IsComposite() bool {
	return len(m.Path) > 2
}

// BuysBase reports whether spending tokenIn on this market acquires the base asset.
func (m Market) BuysBase(tokenIn common.Address) bool {
	return tokenIn == m.QuoteAddress
}

// DecimalsOf returns the decimals of the base or quote token at addr.
func (m Market) DecimalsOf(addr common.Address) uint8 {
	if addr == m.QuoteAddress {
		return m.QuoteDecimals
	}
	return m.BaseDecimals
}

// Clone returns a deep copy, so callers can rewrite Path and Fee freely.
func (m Market) Clone() Market {
	out := m
	out.ScaleFactor = cloneInt(m.ScaleFactor)
	out.PriceFactor = cloneInt(m.PriceFactor)
	out.MinSize = cloneInt(m.MinSize)
	out.MaxPrice = cloneInt(m.MaxPrice)
	out.TickSize = cloneInt(m.TickSize)
	if m.Path != nil {
		out.Path = append([]common.Address(nil), m.Path...)
	}
	return out
}

// Validate checks the configuration invariants of a direct market.
func (m Market) Validate() error {
	switch {
	case m.Fee > FeeDenominator:
		return apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: fee %d out of range", m.Key, m.Fee))
	case m.ScaleFactor == nil || m.ScaleFactor.Sign() <= 0:
		return apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: scale factor must be positive", m.Key))
	case m.PriceFactor == nil || m.PriceFactor.Sign() <= 0:
		return apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: price factor must be positive", m.Key))
	case m.BaseAddress == m.QuoteAddress:
		return apperror.New(apperror.CodeInvalidMarketConfig, apperror.WithContextf("%s: base and quote are the same token", m.Key))
	}
	return nil
}

// CompositeFee multiplies every hop fee and divides by FeeDenominator once.
// The result saturates at MaxUint64 for very long paths.
func CompositeFee(hops []Market) uint64 {
	if len(hops) == 0 {
		return 0
	}
	product := new(big.Int).SetUint64(hops[0].Fee)
	for _, h := range hops[1:] {
		product.Mul(product, new(big.Int).SetUint64(h.Fee))
	}
	product.Quo(product, big.NewInt(FeeDenominator))
	if !product.IsUint64() {
		return math.MaxUint64
	}
	return product.Uint64()
}

// Composite builds the multihop market for path from its hop markets.
// Every field other than Path and Fee comes from the last hop.
func Composite(path []common.Address, hops []Market) Market {
	out := hops[len(hops)-1].Clone()
	out.Path = append([]common.Address(nil), path...)
	out.Fee = CompositeFee(hops)
	return out
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
