// Package binance implements the market data source on top of the
// Binance spot API, in mainnet or testnet mode.
package binance

import (
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"

	"github.com/raykavin/alertnrun/pkg/core"
)

var ErrInvalidPair = errors.New("invalid pair")

// SplitAssetQuote splits a trading pair into asset and quote parts
func SplitAssetQuote(pair string) (asset, quote string) {
	var quoteAssets = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB"}

	for _, quote = range quoteAssets {
		if len(pair) > len(quote) && pair[len(pair)-len(quote):] == quote {
			asset = pair[:len(pair)-len(quote)]
			return
		}
	}

	// Default fallback: assume a three-letter quote asset
	if len(pair) > 3 {
		return pair[:len(pair)-3], pair[len(pair)-3:]
	}

	return pair, ""
}

// mapError normalizes Binance API errors into the shared taxonomy so the
// orchestrator can distinguish fatal from retryable failures.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1022, -2014, -2015: // bad signature / invalid key / key rejected
			return fmt.Errorf("%w: %s", core.ErrAuthentication, apiErr.Message)
		case -1003: // WAF rate limit
			return &core.RateLimitError{RetryAfter: time.Minute}
		}
	}

	return err
}

// setupBackoffRetry creates a backoff with sensible defaults for
// websocket reconnects
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 1 * time.Second,
	}
}
