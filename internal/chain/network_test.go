package chain

import (
	"context"
	"math/big"
	"testing"

	"payrouter/internal/apperr"
	"payrouter/internal/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUSDCContract = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
	testWallet       = "0x52908400098527886E0F7030069857D2E4169EE7"
	testTxID         = "0x2c6a575272c56c8d9a9f0d8e2d10a725ebcf0eaf431541bd48b4f5ab54a33c0f"
)

type fakeReader struct {
	tx      *types.Transaction
	pending bool
	txErr   error

	receipt    *types.Receipt
	receiptErr error

	blockNumber uint64
	blockErr    error
}

func (f *fakeReader) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return f.tx, f.pending, f.txErr
}

func (f *fakeReader) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeReader) BlockNumber(ctx context.Context) (uint64, error) {
	return f.blockNumber, f.blockErr
}

func testNetwork(t *testing.T, reader *fakeReader) *Network {
	t.Helper()
	cfg := config.NetworkConfig{
		ChainID:          137,
		NumConfirmations: 200,
		Currencies: map[string]config.CurrencyConfig{
			"POL":  {Decimals: 18},
			"USDC": {Decimals: 6, ContractAddress: testUSDCContract},
		},
	}
	return newNetwork("Polygon", cfg, []rpcReader{reader})
}

func TestCheckWalletAddress(t *testing.T) {
	n := testNetwork(t, &fakeReader{})

	addr, err := n.CheckWalletAddress(testWallet)
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", addr)

	for _, bad := range []string{
		"",
		"52908400098527886E0F7030069857D2E4169EE7",
		"0x5290840009852788",
		"0x52908400098527886E0F7030069857D2E4169EEZ",
		testWallet + "aa",
	} {
		_, err := n.CheckWalletAddress(bad)
		assert.True(t, apperr.Is(err, apperr.WrongWalletAddr), "address %q", bad)
	}
}

func TestCreateTransactionNative(t *testing.T) {
	n := testNetwork(t, &fakeReader{})

	tx, err := n.CreateTransaction("POL", testWallet, decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", tx["to"])
	assert.Equal(t, "0x14d1120d7b160000", tx["value"])
	assert.NotContains(t, tx, "data")
}

func TestCreateTransactionToken(t *testing.T) {
	n := testNetwork(t, &fakeReader{})

	tx, err := n.CreateTransaction("USDC", testWallet, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, testUSDCContract, tx["to"])
	assert.Equal(t,
		"0xa9059cbb"+
			"00000000000000000000000052908400098527886e0f7030069857d2e4169ee7"+
			"0000000000000000000000000000000000000000000000000000000005f5e100",
		tx["data"])
}

func TestCreateTransactionRejectsFractionalDust(t *testing.T) {
	n := testNetwork(t, &fakeReader{})

	_, err := n.CreateTransaction("USDC", testWallet, decimal.RequireFromString("0.0000001"))
	assert.True(t, apperr.Is(err, apperr.Payment))

	_, err = n.CreateTransaction("USDC", testWallet, decimal.NewFromInt(-1))
	assert.True(t, apperr.Is(err, apperr.Payment))

	_, err = n.CreateTransaction("DOGE", testWallet, decimal.NewFromInt(1))
	assert.True(t, apperr.Is(err, apperr.UnknownCurrency))

	// Pointless on chain but well formed, a zero transfer still encodes.
	tx, err := n.CreateTransaction("POL", testWallet, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0x0", tx["value"])
}

func tokenTransferTx(contract, dst string, amount *big.Int) *types.Transaction {
	data := append([]byte{0xa9, 0x05, 0x9c, 0xbb}, common.LeftPadBytes(common.HexToAddress(dst).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	to := common.HexToAddress(contract)
	return types.NewTx(&types.LegacyTx{To: &to, Data: data})
}

func TestCheckTransactionToken(t *testing.T) {
	amount := big.NewInt(100_000000)
	reader := &fakeReader{
		tx:      tokenTransferTx(testUSDCContract, testWallet, amount),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	n := testNetwork(t, reader)

	err := n.CheckTransaction(context.Background(), testTxID, "USDC", decimal.NewFromInt(100), testWallet)
	assert.NoError(t, err)

	err = n.CheckTransaction(context.Background(), testTxID, "USDC", decimal.NewFromInt(99), testWallet)
	assert.True(t, apperr.Is(err, apperr.TrxCheckError))

	err = n.CheckTransaction(context.Background(), testTxID, "USDC", decimal.NewFromInt(100),
		"0x000000000000000000000000000000000000dead")
	assert.True(t, apperr.Is(err, apperr.TrxCheckError))
}

func TestCheckTransactionNative(t *testing.T) {
	to := common.HexToAddress(testWallet)
	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	reader := &fakeReader{
		tx:      types.NewTx(&types.LegacyTx{To: &to, Value: value}),
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}
	n := testNetwork(t, reader)

	err := n.CheckTransaction(context.Background(), testTxID, "POL", decimal.RequireFromString("1.5"), testWallet)
	assert.NoError(t, err)

	err = n.CheckTransaction(context.Background(), testTxID, "POL", decimal.RequireFromString("1.6"), testWallet)
	assert.True(t, apperr.Is(err, apperr.TrxCheckError))
}

func TestCheckTransactionFailedReceipt(t *testing.T) {
	reader := &fakeReader{
		tx:      tokenTransferTx(testUSDCContract, testWallet, big.NewInt(100_000000)),
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed},
	}
	n := testNetwork(t, reader)

	err := n.CheckTransaction(context.Background(), testTxID, "USDC", decimal.NewFromInt(100), testWallet)
	assert.True(t, apperr.Is(err, apperr.TrxCheckError))
}

func TestCheckTransactionBadInputs(t *testing.T) {
	n := testNetwork(t, &fakeReader{})

	err := n.CheckTransaction(context.Background(), "0xdead", "USDC", decimal.NewFromInt(1), testWallet)
	assert.True(t, apperr.Is(err, apperr.WrongTxID))

	err = n.CheckTransaction(context.Background(), testTxID, "DOGE", decimal.NewFromInt(1), testWallet)
	assert.True(t, apperr.Is(err, apperr.UnknownCurrency))
}

func TestGetTransactionStatus(t *testing.T) {
	minedAt := big.NewInt(1000)
	blockHash := common.HexToHash("0x01")
	reader := &fakeReader{
		tx: tokenTransferTx(testUSDCContract, testWallet, big.NewInt(1)),
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: minedAt,
			BlockHash:   blockHash,
		},
		blockNumber: 1100,
	}
	n := testNetwork(t, reader)

	// Head unknown until the first sweep refreshes it.
	status, err := n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	require.NoError(t, n.UpdateLatestBlock(context.Background()))
	assert.Equal(t, uint64(1100), n.LatestBlock())

	// 100 confirmations of 200 required.
	status, err = n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	reader.blockNumber = 1200
	require.NoError(t, n.UpdateLatestBlock(context.Background()))
	status, err = n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	reader.receipt.Status = types.ReceiptStatusFailed
	status, err = n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
}

func TestGetTransactionStatusUnmined(t *testing.T) {
	reader := &fakeReader{
		tx:          tokenTransferTx(testUSDCContract, testWallet, big.NewInt(1)),
		pending:     true,
		blockNumber: 1100,
	}
	n := testNetwork(t, reader)
	require.NoError(t, n.UpdateLatestBlock(context.Background()))

	status, err := n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	reader.pending = false
	reader.txErr = ethereum.NotFound
	status, err = n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	reader.txErr = nil
	reader.receiptErr = ethereum.NotFound
	status, err = n.GetTransactionStatus(context.Background(), testTxID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
}

func TestRegistryForPaymentType(t *testing.T) {
	n := testNetwork(t, &fakeReader{})
	registry := newRegistryWithNetworks(map[string]*Network{"Polygon": n})

	got, err := registry.ForPaymentType("crypto:Polygon")
	require.NoError(t, err)
	assert.Equal(t, "Polygon", got.Name)

	_, err = registry.ForPaymentType("crypto:Tron")
	assert.True(t, apperr.Is(err, apperr.WrongParameters))

	_, err = registry.ForPaymentType("card")
	assert.True(t, apperr.Is(err, apperr.WrongParameters))
}
