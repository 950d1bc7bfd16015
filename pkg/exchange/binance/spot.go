package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
)

// Spot represents the Binance spot market client
type Spot struct {
	client  *binance.Client
	log     logger.Logger
	symbols map[string]struct{}
}

// SpotOption is a function that configures a Spot client
type SpotOption func(*Spot)

// WithCredentials sets the API credentials for the Spot client
func WithCredentials(key, secret string) SpotOption {
	return func(s *Spot) {
		s.client = binance.NewClient(key, secret)
	}
}

// WithTestNet switches the client to the Binance testnet. The testnet is
// interface-identical to mainnet for the rest of the system.
func WithTestNet() SpotOption {
	return func(_ *Spot) {
		binance.UseTestnet = true
	}
}

// WithCustomAPIEndpoint overrides the REST and websocket endpoints
func WithCustomAPIEndpoint(apiURL, wsURL string) SpotOption {
	return func(_ *Spot) {
		binance.BaseAPIMainURL = apiURL
		binance.BaseWsMainURL = wsURL
	}
}

// NewSpot creates a new Binance spot market data client. Connectivity is
// validated immediately so a misconfigured exchange fails at startup.
func NewSpot(ctx context.Context, log logger.Logger, options ...SpotOption) (*Spot, error) {
	binance.WebsocketKeepalive = true

	spot := &Spot{
		client:  binance.NewClient("", ""),
		log:     log,
		symbols: make(map[string]struct{}),
	}

	for _, option := range options {
		option(spot)
	}

	// Test connection
	if err := spot.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", mapError(err))
	}

	// Load tradeable symbols for pair validation
	exchangeInfo, err := spot.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", mapError(err))
	}

	for _, info := range exchangeInfo.Symbols {
		spot.symbols[info.Symbol] = struct{}{}
	}

	log.Info("[SETUP] Using Binance Spot market data")
	return spot, nil
}

// ValidatePair checks that the exchange actually trades the pair.
func (s *Spot) ValidatePair(pair string) error {
	if _, ok := s.symbols[pair]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidPair, pair)
	}
	return nil
}

// LastQuote gets the latest price for a pair
func (s *Spot) LastQuote(ctx context.Context, pair string) (float64, error) {
	candles, err := s.CandlesByLimit(ctx, pair, "1m", 1)
	if err != nil {
		return 0, err
	}
	return lastClose(pair, candles)
}

// lastClose extracts the most recent close. An empty window is a data
// error, never a zero quote.
func lastClose(pair string, candles []core.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, &core.DataFormatError{Pair: pair, Err: errors.New("empty candle window")}
	}
	return candles[len(candles)-1].Close, nil
}

// Account gets the account balances
func (s *Spot) Account(ctx context.Context) (core.Account, error) {
	acc, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return core.Account{}, mapError(err)
	}

	balances := make([]core.Balance, 0, len(acc.Balances))
	for _, balance := range acc.Balances {
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return core.Account{}, &core.DataFormatError{Pair: balance.Asset, Err: err}
		}
		locked, err := strconv.ParseFloat(balance.Locked, 64)
		if err != nil {
			return core.Account{}, &core.DataFormatError{Pair: balance.Asset, Err: err}
		}

		// Skip zero balances for cleaner results
		if free == 0 && locked == 0 {
			continue
		}

		balances = append(balances, core.Balance{
			Asset: balance.Asset,
			Free:  free,
			Lock:  locked,
		})
	}

	return core.Account{Balances: balances}, nil
}

// CandlesSubscription subscribes to candle updates for a pair. The stream
// reconnects with backoff until the context is cancelled.
func (s *Spot) CandlesSubscription(ctx context.Context, pair, period string) (chan core.Candle, chan error) {
	candleChan := make(chan core.Candle)
	errChan := make(chan error)
	retry := setupBackoffRetry()

	go func() {
		for {
			done, _, err := binance.WsKlineServe(pair, period, func(event *binance.WsKlineEvent) {
				retry.Reset()

				candle, err := convertWsKlineToCandle(pair, event.Kline)
				if err != nil {
					s.log.WithError(err).Warnf("skipping malformed kline for %s", pair)
					return
				}

				candleChan <- candle
			}, func(err error) {
				errChan <- err
			})

			if err != nil {
				errChan <- err
				close(errChan)
				close(candleChan)
				return
			}

			select {
			case <-ctx.Done():
				close(errChan)
				close(candleChan)
				return
			case <-done:
				time.Sleep(retry.Duration())
			}
		}
	}()

	return candleChan, errChan
}

// CandlesByLimit gets a number of complete candles for a pair
func (s *Spot) CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]core.Candle, error) {
	data, err := s.client.NewKlinesService().
		Symbol(pair).
		Interval(period).
		Limit(limit + 1). // +1 to discard the last incomplete candle
		Do(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	candles := make([]core.Candle, 0, len(data))
	for i, d := range data {
		// Skip the last candle as it's incomplete
		if i == len(data)-1 {
			break
		}

		candle, err := convertKlineToCandle(pair, *d)
		if err != nil {
			s.log.WithError(err).Warnf("skipping malformed kline for %s", pair)
			continue
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

// convertKlineToCandle converts a Binance kline to a core.Candle
func convertKlineToCandle(pair string, k binance.Kline) (core.Candle, error) {
	t := time.Unix(0, k.OpenTime*int64(time.Millisecond))
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: t,
		Complete:  true,
	}

	var err error
	if candle.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}

	return candle, nil
}

// convertWsKlineToCandle converts a Binance websocket kline to a core.Candle
func convertWsKlineToCandle(pair string, k binance.WsKline) (core.Candle, error) {
	t := time.Unix(0, k.StartTime*int64(time.Millisecond))
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: t,
		Complete:  k.IsFinal,
	}

	var err error
	if candle.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}
	if candle.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return core.Candle{}, &core.DataFormatError{Pair: pair, Err: err}
	}

	return candle, nil
}
