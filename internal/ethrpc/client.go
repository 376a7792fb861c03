package ethrpc

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Client defines the interface for interacting with an execution client
// JSON-RPC endpoint. All quantities arrive as 0x-prefixed hex on the
// wire; decode failures are returned as errors of the call that
// produced them.
type Client interface {
	// ChainID retrieves the chain id via eth_chainId.
	ChainID(ctx context.Context) (uint64, error)
	// BlockNumber retrieves the latest block number via eth_blockNumber.
	BlockNumber(ctx context.Context) (uint64, error)
	// GasPrice retrieves the current gas price via eth_gasPrice.
	GasPrice(ctx context.Context) (*big.Int, error)
	// MaxPriorityFee retrieves the suggested priority fee via
	// eth_maxPriorityFeePerGas.
	MaxPriorityFee(ctx context.Context) (*big.Int, error)
	// PeerCount retrieves the connected peer count via net_peerCount.
	PeerCount(ctx context.Context) (uint64, error)
	// BlockByNumber retrieves a block by number via eth_getBlockByNumber
	// with transaction hashes only. Returns ethereum.NotFound when the
	// node does not have the block.
	BlockByNumber(ctx context.Context, number uint64) (*BlockInfo, error)
	// FeeHistory retrieves base fee, gas usage and reward percentiles
	// for the given number of newest blocks via eth_feeHistory.
	FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*FeeHistory, error)
	// Close tears down the underlying connection.
	Close()
}

type client struct {
	log      logrus.FieldLogger
	endpoint string
	rpc      *rpc.Client
}

// Dial creates a new execution client for the configured endpoint. The
// connection is not verified here; the first call surfaces any
// reachability problem.
func Dial(ctx context.Context, log logrus.FieldLogger, cfg Config) (Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	rpcClient, err := rpc.DialOptions(
		ctx,
		cfg.Endpoint,
		rpc.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.Endpoint, err)
	}

	for key, val := range cfg.Headers {
		rpcClient.SetHeader(key, val)
	}

	return &client{
		log:      log.WithField("component", "ethrpc").WithField("endpoint", cfg.Name),
		endpoint: cfg.Endpoint,
		rpc:      rpcClient,
	}, nil
}

func (c *client) ChainID(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_chainId")
}

func (c *client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "eth_blockNumber")
}

func (c *client) PeerCount(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "net_peerCount")
}

func (c *client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_gasPrice")
}

func (c *client) MaxPriorityFee(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "eth_maxPriorityFeePerGas")
}

// rpcBlock mirrors the wire shape of eth_getBlockByNumber with
// fullTransactions=false.
type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	GasLimit     hexutil.Uint64 `json:"gasLimit"`
	BaseFee      *hexutil.Big   `json:"baseFeePerGas"`
	Transactions []common.Hash  `json:"transactions"`
}

func (c *client) BlockByNumber(ctx context.Context, number uint64) (*BlockInfo, error) {
	var raw *rpcBlock

	err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.Uint64(number), false)
	if err != nil {
		return nil, fmt.Errorf("calling eth_getBlockByNumber(%d): %w", number, err)
	}

	if raw == nil {
		return nil, ethereum.NotFound
	}

	info := &BlockInfo{
		Number:     uint64(raw.Number),
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		Timestamp:  uint64(raw.Timestamp),
		TxCount:    len(raw.Transactions),
		GasUsed:    uint64(raw.GasUsed),
		GasLimit:   uint64(raw.GasLimit),
	}

	if raw.BaseFee != nil {
		info.BaseFee = raw.BaseFee.ToInt()
	}

	return info, nil
}

// rpcFeeHistory mirrors the wire shape of eth_feeHistory.
type rpcFeeHistory struct {
	OldestBlock  hexutil.Uint64   `json:"oldestBlock"`
	BaseFees     []*hexutil.Big   `json:"baseFeePerGas"`
	GasUsedRatio []float64        `json:"gasUsedRatio"`
	Reward       [][]*hexutil.Big `json:"reward"`
}

func (c *client) FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*FeeHistory, error) {
	var raw rpcFeeHistory

	err := c.rpc.CallContext(ctx, &raw, "eth_feeHistory", hexutil.Uint64(blockCount), "latest", percentiles)
	if err != nil {
		return nil, fmt.Errorf("calling eth_feeHistory: %w", err)
	}

	fh := &FeeHistory{
		OldestBlock:  uint64(raw.OldestBlock),
		BaseFees:     make([]*big.Int, len(raw.BaseFees)),
		GasUsedRatio: raw.GasUsedRatio,
		Reward:       make([][]*big.Int, len(raw.Reward)),
		Percentiles:  percentiles,
	}

	for i, fee := range raw.BaseFees {
		if fee != nil {
			fh.BaseFees[i] = fee.ToInt()
		}
	}

	for i, row := range raw.Reward {
		fh.Reward[i] = make([]*big.Int, len(row))

		for j, reward := range row {
			if reward != nil {
				fh.Reward[i][j] = reward.ToInt()
			}
		}
	}

	return fh, nil
}

func (c *client) Close() {
	c.rpc.Close()
}

// callUint64 performs a parameterless call whose result is a single
// hex quantity fitting in a uint64.
func (c *client) callUint64(ctx context.Context, method string) (uint64, error) {
	var raw string

	if err := c.rpc.CallContext(ctx, &raw, method); err != nil {
		return 0, fmt.Errorf("calling %s: %w", method, err)
	}

	value, err := hexutil.DecodeUint64(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding %s result %q: %w", method, raw, err)
	}

	return value, nil
}

// callBig performs a parameterless call whose result is a single hex
// quantity of arbitrary size.
func (c *client) callBig(ctx context.Context, method string) (*big.Int, error) {
	var raw string

	if err := c.rpc.CallContext(ctx, &raw, method); err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	value, err := hexutil.DecodeBig(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result %q: %w", method, raw, err)
	}

	return value, nil
}
