package domain

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokA = common.HexToAddress("0xa0")
	tokB = common.HexToAddress("0xb0")
	tokC = common.HexToAddress("0xc0")
	tokD = common.HexToAddress("0xd0")
	tokE = common.HexToAddress("0xe0")
	tokX = common.HexToAddress("0xf0")
	tokY = common.HexToAddress("0xf1")
)

func edge(a, b common.Address) Market {
	return Market{BaseAddress: a, QuoteAddress: b}
}

func TestGraph_ShortestPath(t *testing.T) {
	// A-B, A-C, B-D, C-D, D-E, X-Y (separate component)
	g := NewGraph([]Market{
		edge(tokA, tokB),
		edge(tokA, tokC),
		edge(tokB, tokD),
		edge(tokC, tokD),
		edge(tokD, tokE),
		edge(tokX, tokY),
	})

	tests := []struct {
		name   string
		from   common.Address
		to     common.Address
		want   []common.Address
		wantOK bool
	}{
		{"same token", tokA, tokA, []common.Address{tokA}, true},
		{"direct", tokA, tokB, []common.Address{tokA, tokB}, true},
		{"reverse direct", tokB, tokA, []common.Address{tokB, tokA}, true},
		{"tie broken by config order", tokA, tokD, []common.Address{tokA, tokB, tokD}, true},
		{"three edges", tokA, tokE, []common.Address{tokA, tokB, tokD, tokE}, true},
		{"disconnected", tokA, tokX, nil, false},
		{"unknown token", tokA, common.HexToAddress("0x99"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.ShortestPath(tt.from, tt.to)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGraph_ShortestPathIsDeterministic(t *testing.T) {
	markets := []Market{edge(tokA, tokC), edge(tokA, tokB), edge(tokB, tokD), edge(tokC, tokD)}
	first, ok := NewGraph(markets).ShortestPath(tokA, tokD)
	require.True(t, ok)
	// C was configured first, so it wins the tie.
	assert.Equal(t, []common.Address{tokA, tokC, tokD}, first)

	for i := 0; i < 50; i++ {
		again, _ := NewGraph(markets).ShortestPath(tokA, tokD)
		require.Equal(t, first, again)
	}
}

func TestGraph_DuplicateEdgesIgnored(t *testing.T) {
	g := NewGraph([]Market{edge(tokA, tokB), edge(tokB, tokA), edge(tokA, tokB)})
	assert.Equal(t, []common.Address{tokB}, g.Neighbors(tokA))
	assert.Equal(t, []common.Address{tokA}, g.Neighbors(tokB))
}

func TestCompositeFee(t *testing.T) {
	tests := []struct {
		name string
		fees []uint64
		want uint64
	}{
		{"single hop is still divided", []uint64{99900}, 0},
		{"two hops", []uint64{99900, 99800}, 99900 * 99800 / FeeDenominator},
		{"three hops divided once", []uint64{99900, 99800, 99700}, 99900 * 99800 * 99700 / FeeDenominator},
		{"zero fee", []uint64{0, 99800}, 0},
		{"saturates", []uint64{100000, 100000, 100000, 100000, 100000}, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hops := make([]Market, len(tt.fees))
			for i, f := range tt.fees {
				hops[i] = Market{Fee: f}
			}
			assert.Equal(t, tt.want, CompositeFee(hops))
		})
	}
	assert.Zero(t, CompositeFee(nil))
}

func TestComposite_CopiesLastHop(t *testing.T) {
	first := Market{Key: "ETH/USDC", Fee: 99900, ScaleFactor: big.NewInt(1), PriceFactor: big.NewInt(1)}
	last := Market{Key: "USDC/FOO", Fee: 99800, ScaleFactor: big.NewInt(10), PriceFactor: big.NewInt(100), QuoteDecimals: 8}
	path := []common.Address{tokA, tokB, tokC}

	c := Composite(path, []Market{first, last})
	assert.Equal(t, Key("USDC/FOO"), c.Key)
	assert.Equal(t, uint8(8), c.QuoteDecimals)
	assert.Equal(t, path, c.Path)
	assert.Equal(t, uint64(99900*99800/FeeDenominator), c.Fee)
	assert.True(t, c.IsComposite())

	// the composite does not alias the hop
	c.ScaleFactor.SetInt64(7)
	assert.Equal(t, int64(10), last.ScaleFactor.Int64())
}

func TestMarket_Validate(t *testing.T) {
	ok := Market{Key: "ETH/USDC", BaseAddress: tokA, QuoteAddress: tokB, Fee: 99900, ScaleFactor: big.NewInt(1), PriceFactor: big.NewInt(1)}
	require.NoError(t, ok.Validate())

	bad := ok.Clone()
	bad.Fee = FeeDenominator + 1
	assert.Error(t, bad.Validate())

	bad = ok.Clone()
	bad.PriceFactor = big.NewInt(0)
	assert.Error(t, bad.Validate())

	bad = ok.Clone()
	bad.QuoteAddress = tokA
	assert.Error(t, bad.Validate())
}

func BenchmarkGraph_ShortestPath(b *testing.B) {
	var markets []Market
	for i := 0; i < 200; i++ {
		markets = append(markets, edge(common.BigToAddress(big.NewInt(int64(i))), common.BigToAddress(big.NewInt(int64(i+1)))))
	}
	g := NewGraph(markets)
	from, to := common.BigToAddress(big.NewInt(0)), common.BigToAddress(big.NewInt(200))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.ShortestPath(from, to)
	}
}
