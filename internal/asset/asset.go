package asset

import "github.com/ethereum/go-ethereum/common"

// Asset is an on-chain token. Identity is the AssetID; the ticker is display metadata.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
	imageRef string
}

// NewAsset creates an Asset.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 36 {
		panic("asset: suspicious decimals (>36)")
	}

	return &Asset{
		id:       id,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewToken creates a fully described token. The zero address denotes the native coin.
func NewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8, imageRef string) *Asset {
	id := NewNativeAssetID(chainID)
	if address != (common.Address{}) {
		id = NewTokenAssetID(chainID, address)
	}

	a := NewAsset(id, symbol, decimals)
	a.name = name
	a.imageRef = imageRef
	return a
}

func (a *Asset) ID() AssetID {
	return a.id
}

// Symbol returns the ticker (e.g. "ETH", "USDC").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name falls back to the ticker when unset.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// ImageRef is an opaque icon reference for front ends.
func (a *Asset) ImageRef() string {
	return a.imageRef
}

func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

func (a *Asset) IsNative() bool {
	return a.id.IsNative()
}

// Address returns the token contract address (zero for the native coin).
func (a *Asset) Address() common.Address {
	return a.id.Address()
}

func (a *Asset) String() string {
	return a.symbol
}

// Equals compares by identity.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
