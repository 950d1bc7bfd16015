package binance

import (
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/alertnrun/pkg/core"
)

func TestLastCloseEmptyWindow(t *testing.T) {
	_, err := lastClose("BTCUSDT", nil)
	require.Error(t, err)

	var dataErr *core.DataFormatError
	require.ErrorAs(t, err, &dataErr)
	require.Equal(t, "BTCUSDT", dataErr.Pair)
}

func TestLastClosePicksMostRecent(t *testing.T) {
	quote, err := lastClose("BTCUSDT", []core.Candle{
		{Pair: "BTCUSDT", Close: 49000, Complete: true},
		{Pair: "BTCUSDT", Close: 50100, Complete: true},
	})
	require.NoError(t, err)
	require.Equal(t, 50100.0, quote)
}

func TestSplitAssetQuote(t *testing.T) {
	asset, quote := SplitAssetQuote("BTCUSDT")
	require.Equal(t, "BTC", asset)
	require.Equal(t, "USDT", quote)

	asset, quote = SplitAssetQuote("ETHBTC")
	require.Equal(t, "ETH", asset)
	require.Equal(t, "BTC", quote)
}

func TestMapError(t *testing.T) {
	require.NoError(t, mapError(nil))

	err := mapError(&common.APIError{Code: -2014, Message: "API-key format invalid"})
	require.ErrorIs(t, err, core.ErrAuthentication)

	err = mapError(&common.APIError{Code: -1003, Message: "Too many requests"})
	var rateLimited *core.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
	require.Equal(t, time.Minute, rateLimited.RetryAfter)

	plain := errors.New("connection reset")
	require.Equal(t, plain, mapError(plain))
}
