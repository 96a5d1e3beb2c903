package ethereum

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	"github.com/fd1az/dex-trader/business/ledger/domain/ledgertest"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/ratelimit"
)

type fakeClient struct {
	logs    []types.Log
	head    uint64
	err     error
	queries []ethereum.FilterQuery
}

func (f *fakeClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.Log(nil), f.logs...), nil
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.err
}

var (
	market = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	topics = domain.Topics{OrderChange: ledgertest.OrderTopic, TradeFill: ledgertest.TradeTopic}
)

func newSource(t *testing.T, c Client) *LogSource {
	t.Helper()
	s, err := NewLogSource(c, []common.Address{market}, topics, ratelimit.New(0), nil)
	require.NoError(t, err)
	return s
}

func TestLogSource_Query(t *testing.T) {
	q := newSource(t, &fakeClient{}).Query(10, 20)

	assert.Equal(t, int64(10), q.FromBlock.Int64())
	assert.Equal(t, int64(20), q.ToBlock.Int64())
	assert.Equal(t, []common.Address{market}, q.Addresses)
	require.Len(t, q.Topics, 1)
	assert.Equal(t, []common.Hash{ledgertest.OrderTopic, ledgertest.TradeTopic}, q.Topics[0])
}

func TestLogSource_FetchLogsOrdersAndDropsRemoved(t *testing.T) {
	client := &fakeClient{logs: []types.Log{
		{BlockNumber: 5, Index: 2},
		{BlockNumber: 4, Index: 9},
		{BlockNumber: 5, Index: 1, Removed: true},
		{BlockNumber: 5, Index: 0},
	}}

	logs, err := newSource(t, client).FetchLogs(context.Background(), 4, 5)
	require.NoError(t, err)

	require.Len(t, logs, 3)
	assert.Equal(t, uint64(4), logs[0].BlockNumber)
	assert.Equal(t, uint(0), logs[1].Index)
	assert.Equal(t, uint(2), logs[2].Index)
	assert.Len(t, client.queries, 1)
}

func TestLogSource_Errors(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	s := newSource(t, client)

	_, err := s.FetchLogs(context.Background(), 1, 2)
	assert.True(t, apperror.HasCode(err, apperror.CodeLogFetchFailed), err.Error())

	_, err = s.LatestBlock(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeEthereumRPCError), err.Error())
}

func TestLogSource_BreakerOpens(t *testing.T) {
	client := &fakeClient{err: errors.New("timeout")}
	s := newSource(t, client)

	var last error
	for i := 0; i < 10; i++ {
		_, last = s.FetchLogs(context.Background(), 1, 2)
	}
	assert.True(t, apperror.HasCode(last, apperror.CodeCircuitOpen), last.Error())
	assert.Less(t, len(client.queries), 10)
}

func TestLogSource_LatestBlock(t *testing.T) {
	n, err := newSource(t, &fakeClient{head: 1234}).LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), n)
}
