package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"payrouter/internal/apperr"
	"payrouter/internal/config"
	"payrouter/internal/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Status of a submitted transaction relative to the chain head.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

const (
	rpcRetryAttempts = 10
	rpcRetryInterval = 5 * time.Second

	// erc20TransferSelector is the 4-byte selector of transfer(address,uint256).
	erc20TransferSelector = "a9059cbb"
	// erc20TransferDataLen is selector + address word + amount word.
	erc20TransferDataLen = 4 + 32 + 32
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
var txIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// rpcReader is the subset of ethclient.Client the network adapter reads from.
type rpcReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Currency is a payable asset on a network. A zero ContractAddress means the
// native coin.
type Currency struct {
	Symbol          string
	Decimals        int32
	ContractAddress string
}

func (c Currency) IsNative() bool {
	return c.ContractAddress == ""
}

// Network wraps the JSON-RPC endpoints of one EVM chain and knows how to
// build and verify payment transactions on it.
type Network struct {
	Name             string
	ChainID          int64
	NumConfirmations uint64
	TxExplorerPrefix string

	currencies map[string]Currency
	clients    []rpcReader
	log        *logrus.Entry

	mu          sync.RWMutex
	latestBlock uint64
}

// NewNetwork dials every configured RPC URL of the network.
func NewNetwork(name string, cfg config.NetworkConfig) (*Network, error) {
	if len(cfg.RPCURLs) == 0 {
		return nil, fmt.Errorf("network %s has no rpc urls", name)
	}
	clients := make([]rpcReader, 0, len(cfg.RPCURLs))
	for _, url := range cfg.RPCURLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("dial %s rpc %s: %w", name, url, err)
		}
		clients = append(clients, client)
	}
	return newNetwork(name, cfg, clients), nil
}

func newNetwork(name string, cfg config.NetworkConfig, clients []rpcReader) *Network {
	currencies := make(map[string]Currency, len(cfg.Currencies))
	for symbol, cc := range cfg.Currencies {
		currencies[symbol] = Currency{
			Symbol:          symbol,
			Decimals:        cc.Decimals,
			ContractAddress: strings.ToLower(cc.ContractAddress),
		}
	}
	return &Network{
		Name:             name,
		ChainID:          cfg.ChainID,
		NumConfirmations: uint64(cfg.NumConfirmations),
		TxExplorerPrefix: cfg.TxExplorerPrefix,
		currencies:       currencies,
		clients:          clients,
		log:              logrus.WithField("network", name),
	}
}

// CheckWalletAddress validates and normalizes an EVM address to lowercase.
func (n *Network) CheckWalletAddress(address string) (string, error) {
	if !addressPattern.MatchString(address) {
		return "", apperr.New(apperr.WrongWalletAddr, "Wrong wallet address %s", address)
	}
	return strings.ToLower(address), nil
}

func (n *Network) checkTxID(txid string) (common.Hash, error) {
	if !txIDPattern.MatchString(txid) {
		return common.Hash{}, apperr.New(apperr.WrongTxID, "Wrong transaction id %s", txid)
	}
	return common.HexToHash(txid), nil
}

// CompareAddresses reports whether two hex addresses refer to the same account.
func (n *Network) CompareAddresses(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Currency returns the network's asset for the symbol.
func (n *Network) Currency(symbol string) (Currency, error) {
	cur, ok := n.currencies[symbol]
	if !ok {
		return Currency{}, apperr.New(apperr.UnknownCurrency, "Unknown currency %s on %s", symbol, n.Name)
	}
	return cur, nil
}

// SupportsCurrency reports whether the symbol is payable on this network.
func (n *Network) SupportsCurrency(symbol string) bool {
	_, ok := n.currencies[symbol]
	return ok
}

// ExplorerURL returns the block explorer link for a transaction id.
func (n *Network) ExplorerURL(txid string) string {
	return n.TxExplorerPrefix + txid
}

// scaleAmount converts a human amount into the currency's smallest unit.
func (n *Network) scaleAmount(amount decimal.Decimal, cur Currency) (*big.Int, error) {
	scaled := amount.Shift(cur.Decimals)
	if !scaled.IsInteger() {
		return nil, apperr.New(apperr.Payment, "Amount %s has too many decimal places for %s", amount, cur.Symbol)
	}
	if scaled.Sign() < 0 {
		return nil, apperr.New(apperr.Payment, "Amount %s is not payable", amount)
	}
	return scaled.BigInt(), nil
}

// CreateTransaction builds the unsigned wallet transaction for a payment: a
// plain value transfer for the native coin, an ERC-20 transfer call for
// contract currencies.
func (n *Network) CreateTransaction(currency string, destination string, amount decimal.Decimal) (map[string]string, error) {
	cur, err := n.Currency(currency)
	if err != nil {
		return nil, err
	}
	dst, err := n.CheckWalletAddress(destination)
	if err != nil {
		return nil, err
	}
	scaled, err := n.scaleAmount(amount, cur)
	if err != nil {
		return nil, err
	}

	if cur.IsNative() {
		return map[string]string{
			"to":    dst,
			"value": hexutil.EncodeBig(scaled),
		}, nil
	}

	data := make([]byte, 0, erc20TransferDataLen)
	selector, _ := hex.DecodeString(erc20TransferSelector)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(dst).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(scaled.Bytes(), 32)...)

	return map[string]string{
		"to":   cur.ContractAddress,
		"data": hexutil.Encode(data),
	}, nil
}

// withRetry runs an RPC read against the endpoint pool, rotating endpoints
// between attempts. ethereum.NotFound is a result, not an outage, and is
// returned immediately.
func (n *Network) withRetry(ctx context.Context, op string, call func(client rpcReader) error) error {
	var lastErr error
	for attempt := 0; attempt < rpcRetryAttempts; attempt++ {
		if attempt > 0 {
			metrics.ChainRPCRetries.WithLabelValues(n.Name).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rpcRetryInterval):
			}
		}
		client := n.clients[attempt%len(n.clients)]
		err := call(client)
		if err == nil || err == ethereum.NotFound {
			return err
		}
		lastErr = err
		n.log.WithError(err).Warnf("%s failed, attempt %d/%d", op, attempt+1, rpcRetryAttempts)
	}
	return apperr.New(apperr.TrxCheckError, "Failed to read %s from %s: %v", op, n.Name, lastErr)
}

func (n *Network) getTransaction(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	var tx *types.Transaction
	var pending bool
	err := n.withRetry(ctx, "transaction", func(client rpcReader) error {
		var err error
		tx, pending, err = client.TransactionByHash(ctx, hash)
		return err
	})
	return tx, pending, err
}

func (n *Network) getReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := n.withRetry(ctx, "receipt", func(client rpcReader) error {
		var err error
		receipt, err = client.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

// CheckTransaction verifies that a submitted transaction actually pays the
// expected amount of the expected currency to the expected address.
func (n *Network) CheckTransaction(ctx context.Context, txid, currency string, amount decimal.Decimal, destination string) error {
	cur, err := n.Currency(currency)
	if err != nil {
		return err
	}
	hash, err := n.checkTxID(txid)
	if err != nil {
		return err
	}
	dst, err := n.CheckWalletAddress(destination)
	if err != nil {
		return err
	}
	scaled, err := n.scaleAmount(amount, cur)
	if err != nil {
		return err
	}

	receipt, err := n.getReceipt(ctx, hash)
	if err == ethereum.NotFound {
		return apperr.New(apperr.TrxCheckError, "Transaction %s not found on %s", txid, n.Name)
	}
	if err != nil {
		return err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return apperr.New(apperr.TrxCheckError, "Transaction %s failed on chain", txid)
	}

	tx, _, err := n.getTransaction(ctx, hash)
	if err == ethereum.NotFound {
		return apperr.New(apperr.TrxCheckError, "Transaction %s not found on %s", txid, n.Name)
	}
	if err != nil {
		return err
	}
	if tx.To() == nil {
		return apperr.New(apperr.TrxCheckError, "Transaction %s is a contract creation", txid)
	}

	if cur.IsNative() {
		if !n.CompareAddresses(tx.To().Hex(), dst) {
			return apperr.New(apperr.TrxCheckError, "Transaction %s pays a different address", txid)
		}
		if tx.Value().Cmp(scaled) != 0 {
			return apperr.New(apperr.TrxCheckError, "Transaction %s pays a different amount", txid)
		}
		return nil
	}

	if !n.CompareAddresses(tx.To().Hex(), cur.ContractAddress) {
		return apperr.New(apperr.TrxCheckError, "Transaction %s targets a different contract", txid)
	}
	data := tx.Data()
	if len(data) != erc20TransferDataLen {
		return apperr.New(apperr.TrxCheckError, "Transaction %s is not a token transfer", txid)
	}
	if hex.EncodeToString(data[:4]) != erc20TransferSelector {
		return apperr.New(apperr.TrxCheckError, "Transaction %s is not a token transfer", txid)
	}
	decodedDst := common.BytesToAddress(data[16:36])
	if !n.CompareAddresses(decodedDst.Hex(), dst) {
		return apperr.New(apperr.TrxCheckError, "Transaction %s pays a different address", txid)
	}
	decodedAmount := new(big.Int).SetBytes(data[36:68])
	if decodedAmount.Cmp(scaled) != 0 {
		return apperr.New(apperr.TrxCheckError, "Transaction %s pays a different amount", txid)
	}
	return nil
}

// GetTransactionStatus reports how far a transaction is from being final,
// counted against the cached chain head.
func (n *Network) GetTransactionStatus(ctx context.Context, txid string) (Status, error) {
	hash, err := n.checkTxID(txid)
	if err != nil {
		return "", err
	}

	latest := n.LatestBlock()
	if latest == 0 {
		return StatusPending, nil
	}

	tx, pending, err := n.getTransaction(ctx, hash)
	if err == ethereum.NotFound {
		return StatusFailed, nil
	}
	if err != nil {
		return "", err
	}
	if pending || tx == nil {
		return StatusPending, nil
	}

	receipt, err := n.getReceipt(ctx, hash)
	if err == ethereum.NotFound {
		return StatusPending, nil
	}
	if err != nil {
		return "", err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return StatusFailed, nil
	}
	if receipt.BlockNumber == nil {
		return StatusPending, nil
	}
	if receipt.BlockHash == (common.Hash{}) {
		return StatusFailed, nil
	}

	mined := receipt.BlockNumber.Uint64()
	if latest < mined {
		return StatusPending, nil
	}
	if latest-mined >= n.NumConfirmations {
		return StatusConfirmed, nil
	}
	return StatusPending, nil
}

// UpdateLatestBlock refreshes the cached chain head.
func (n *Network) UpdateLatestBlock(ctx context.Context) error {
	var head uint64
	err := n.withRetry(ctx, "block number", func(client rpcReader) error {
		var err error
		head, err = client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.latestBlock = head
	n.mu.Unlock()
	return nil
}

// LatestBlock returns the cached chain head, zero if never fetched.
func (n *Network) LatestBlock() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.latestBlock
}
