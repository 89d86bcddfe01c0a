package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.binance.com"

// RESTProvider fetches snapshots and klines from a Binance-compatible REST API.
// It exists so the core can run against live data without a websocket stack;
// production deployments are expected to inject their own Provider.
type RESTProvider struct {
	baseURL  string
	interval string
	client   *http.Client
}

// NewRESTProvider creates a provider against baseURL (empty = Binance mainnet).
func NewRESTProvider(baseURL, interval string) *RESTProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if interval == "" {
		interval = "1m"
	}
	return &RESTProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// GetSnapshot derives the tick view from the latest two klines.
func (p *RESTProvider) GetSnapshot(ctx context.Context, instrument string) (Snapshot, error) {
	series, err := p.GetHistory(ctx, instrument, 2)
	if err != nil {
		return Snapshot{}, err
	}
	last, ok := series.Last()
	if !ok {
		return Snapshot{}, fmt.Errorf("no klines returned for %s", instrument)
	}
	return Snapshot{
		Instrument: instrument,
		LastPrice:  last.Close,
		Volume:     last.Volume,
		At:         last.OpenTime,
	}, nil
}

// GetHistory fetches the most recent bars for an instrument.
func (p *RESTProvider) GetHistory(ctx context.Context, instrument string, bars int) (Series, error) {
	if bars <= 0 {
		bars = 100
	}

	q := url.Values{}
	q.Set("symbol", restSymbol(instrument))
	q.Set("interval", p.interval)
	q.Set("limit", strconv.Itoa(bars))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", instrument, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch klines %s: status %d", instrument, resp.StatusCode)
	}

	var raw [][]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode klines %s: %w", instrument, err)
	}

	series := make(Series, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, ok := k[0].(float64)
		if !ok {
			continue
		}
		series = append(series, Bar{
			OpenTime: time.UnixMilli(int64(openTime)),
			Open:     parseFloat(k[1]),
			High:     parseFloat(k[2]),
			Low:      parseFloat(k[3]),
			Close:    parseFloat(k[4]),
			Volume:   parseFloat(k[5]),
		})
	}
	return series, nil
}

// restSymbol maps an internal instrument like BTC-USDT to the API's BTCUSDT.
func restSymbol(instrument string) string {
	return strings.ToUpper(strings.ReplaceAll(instrument, "-", ""))
}

func parseFloat(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
