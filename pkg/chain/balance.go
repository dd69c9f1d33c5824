package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/resilience"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

const (
	balanceBreakerName      = "polygon-balance"
	balanceFailureThreshold = 3
	balanceRecoveryTimeout  = 30 * time.Second

	usdcDecimals = 1e6
)

// ContractCaller is the slice of ethclient the probe needs; satisfied by
// *ethclient.Client and by test fakes.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BalanceReader reads the follower's USDC balance from chain, behind the
// shared "polygon-balance" circuit breaker.
type BalanceReader struct {
	caller  ContractCaller
	usdc    common.Address
	usdcABI abi.ABI
	breaker *resilience.CircuitBreaker
}

// NewBalanceReader dials the RPC endpoint and prepares the ERC-20 call.
func NewBalanceReader(rpcURL, usdcContract string, registry *resilience.Registry) (*BalanceReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.NewNetworkError("chain", "NewBalanceReader", "failed to connect to RPC endpoint", err,
			errors.WithMetadata("rpc_url", rpcURL))
	}
	return newBalanceReader(client, usdcContract, registry)
}

func newBalanceReader(caller ContractCaller, usdcContract string, registry *resilience.Registry) (*BalanceReader, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.NewConfigurationError("chain", "NewBalanceReader", "failed to parse ERC-20 ABI", err)
	}
	return &BalanceReader{
		caller:  caller,
		usdc:    common.HexToAddress(usdcContract),
		usdcABI: parsed,
		breaker: registry.GetBreaker(balanceBreakerName, balanceFailureThreshold, balanceRecoveryTimeout),
	}, nil
}

// GetBalance returns the address's USDC balance as a decimal amount.
func (b *BalanceReader) GetBalance(ctx context.Context, address string) (float64, error) {
	var balance float64

	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		input, err := b.usdcABI.Pack("balanceOf", common.HexToAddress(address))
		if err != nil {
			return err
		}

		output, err := b.caller.CallContract(ctx, ethereum.CallMsg{To: &b.usdc, Data: input}, nil)
		if err != nil {
			return err
		}

		results, err := b.usdcABI.Unpack("balanceOf", output)
		if err != nil {
			return err
		}
		raw, ok := results[0].(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected balanceOf result type %T", results[0])
		}

		asFloat, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(usdcDecimals)).Float64()
		balance = asFloat
		return nil
	})
	if err != nil {
		if errors.IsKind(err, errors.KindCircuitBreaker) {
			return 0, err
		}
		logger.Sugar.Warnw("Balance read failed", errors.LogFields(err)...)
		return 0, errors.NewAPIError("chain", "GetBalance",
			fmt.Sprintf("failed to read balance for %s", RedactAddress(address)), err,
			errors.WithMetadata("address", RedactAddress(address)))
	}

	return balance, nil
}

// RedactAddress keeps the first six and last four characters of an
// address so logs stay correlatable without exposing the full wallet.
func RedactAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
