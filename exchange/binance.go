package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tribot/market"
)

const (
	statsCacheTTL     = 15 * time.Second
	statsLookbackDays = 7
	defaultTimeout    = 20 * time.Second
)

// BinanceConfig Binance 合约客户端配置
type BinanceConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Timeout   time.Duration
}

type lotFilter struct {
	minQty float64
	step   float64
}

// BinanceClient 基于官方 go-binance SDK 的合约网关实现
type BinanceClient struct {
	client  *futures.Client
	timeout time.Duration

	lotMu      sync.Mutex
	lotFilters map[string]lotFilter

	statsMu      sync.Mutex
	statsCache   *Stats
	statsCacheAt time.Time
}

// NewBinanceClient 创建合约网关
func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	futures.UseTestnet = cfg.Testnet
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &BinanceClient{
		client:     binance.NewFuturesClient(cfg.APIKey, cfg.APISecret),
		timeout:    timeout,
		lotFilters: make(map[string]lotFilter),
	}
}

func (c *BinanceClient) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// wrapErr 包装错误；限频/网络类错误标记为可重试
func wrapErr(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1001, -1003, -1015: // DISCONNECTED / TOO_MANY_REQUESTS / TOO_MANY_ORDERS
			return fmt.Errorf("%s: %v: %w", op, apiErr, ErrRetryable)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %v: %w", op, netErr, ErrRetryable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeStatus(status futures.OrderStatusType) string {
	switch status {
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
		return OrderStatusOpen
	case futures.OrderStatusTypeFilled:
		return OrderStatusClosed
	case futures.OrderStatusTypeRejected, futures.OrderStatusTypeExpired, futures.OrderStatusTypeCanceled:
		return OrderStatusRejected
	default:
		return strings.ToLower(string(status))
	}
}

func sideType(side string) futures.SideType {
	if strings.EqualFold(side, "buy") {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func newClientOrderID() string {
	return "tribot-" + uuid.NewString()[:18]
}

// CreateOrder 下单；orderType 非 "limit" 一律按市价处理
func (c *BinanceClient) CreateOrder(symbol, side, orderType string, amount, price float64) (*OrderResult, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	svc := c.client.NewCreateOrderService().
		Symbol(market.Normalize(symbol)).
		Side(sideType(side)).
		Quantity(formatQty(amount)).
		NewClientOrderID(newClientOrderID())

	if strings.EqualFold(orderType, "limit") && price > 0 {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatQty(price))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, wrapErr("create order", err)
	}

	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	avgPrice, _ := strconv.ParseFloat(res.AvgPrice, 64)
	return &OrderResult{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Status:   normalizeStatus(res.Status),
		Filled:   filled,
		AvgPrice: avgPrice,
	}, nil
}

// ClosePosition 只减仓市价平仓
func (c *BinanceClient) ClosePosition(symbol, side string, amount float64) (*OrderResult, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	res, err := c.client.NewCreateOrderService().
		Symbol(market.Normalize(symbol)).
		Side(sideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(amount)).
		ReduceOnly(true).
		NewClientOrderID(newClientOrderID()).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("close position", err)
	}

	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	avgPrice, _ := strconv.ParseFloat(res.AvgPrice, 64)
	return &OrderResult{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Status:   normalizeStatus(res.Status),
		Filled:   filled,
		AvgPrice: avgPrice,
	}, nil
}

// FetchOHLCV 获取K线（oldest->newest，SDK 原生顺序即为正序）
func (c *BinanceClient) FetchOHLCV(symbol, timeframe string, limit int) ([]market.Kline, error) {
	if market.IntervalDuration(timeframe) == 0 {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	ctx, cancel := c.ctx()
	defer cancel()

	rows, err := c.client.NewKlinesService().
		Symbol(market.Normalize(symbol)).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("fetch ohlcv", err)
	}

	klines := make([]market.Kline, 0, len(rows))
	for _, row := range rows {
		open, _ := strconv.ParseFloat(row.Open, 64)
		high, _ := strconv.ParseFloat(row.High, 64)
		low, _ := strconv.ParseFloat(row.Low, 64)
		closePrice, _ := strconv.ParseFloat(row.Close, 64)
		volume, _ := strconv.ParseFloat(row.Volume, 64)
		klines = append(klines, market.Kline{
			OpenTime: row.OpenTime,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}
	return klines, nil
}

// GetBalance 查询账户权益
func (c *BinanceClient) GetBalance() (*Balance, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, wrapErr("get balance", err)
	}

	total, _ := strconv.ParseFloat(account.TotalMarginBalance, 64)
	available, _ := strconv.ParseFloat(account.AvailableBalance, 64)
	return &Balance{TotalEquity: total, AvailableBalance: available}, nil
}

// GetLastPrice 查询最新成交价
func (c *BinanceClient) GetLastPrice(symbol string) (float64, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	prices, err := c.client.NewListPricesService().Symbol(market.Normalize(symbol)).Do(ctx)
	if err != nil {
		return 0, wrapErr("get last price", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("get last price: empty response for %s", symbol)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("get last price: parse %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// NormalizeQty 按步进向下取整；低于最小下单量返回 0
func (c *BinanceClient) NormalizeQty(symbol string, qty float64) (float64, error) {
	if qty <= 0 {
		return 0, nil
	}
	filter, err := c.getLotFilter(market.Normalize(symbol))
	if err != nil {
		return 0, err
	}
	if qty < filter.minQty {
		return 0, nil
	}
	if filter.step > 0 {
		qty = math.Floor(qty/filter.step) * filter.step
	}
	return qty, nil
}

func (c *BinanceClient) getLotFilter(symbol string) (lotFilter, error) {
	c.lotMu.Lock()
	if f, ok := c.lotFilters[symbol]; ok {
		c.lotMu.Unlock()
		return f, nil
	}
	c.lotMu.Unlock()

	ctx, cancel := c.ctx()
	defer cancel()

	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return lotFilter{}, wrapErr("exchange info", err)
	}

	c.lotMu.Lock()
	defer c.lotMu.Unlock()
	for _, s := range info.Symbols {
		lot := s.LotSizeFilter()
		if lot == nil {
			continue
		}
		minQty, _ := strconv.ParseFloat(lot.MinQuantity, 64)
		step, _ := strconv.ParseFloat(lot.StepSize, 64)
		c.lotFilters[s.Symbol] = lotFilter{minQty: minQty, step: step}
	}
	f, ok := c.lotFilters[symbol]
	if !ok {
		// 未上市的交易对：不做步进限制
		f = lotFilter{}
		c.lotFilters[symbol] = f
	}
	return f, nil
}

// GetExchangeStats 查询交易所侧统计；15秒缓存，出错时退回上次缓存
func (c *BinanceClient) GetExchangeStats(symbols []string) (*Stats, error) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	if c.statsCache != nil && time.Since(c.statsCacheAt) < statsCacheTTL {
		return c.statsCache, nil
	}

	symbol := "BTCUSDT"
	if len(symbols) > 0 {
		symbol = market.Normalize(symbols[0])
	}

	stats, err := c.buildStats(symbol)
	if err != nil {
		if c.statsCache != nil {
			log.Printf("⚠️  获取交易所统计失败，使用上次缓存: %v", err)
			return c.statsCache, nil
		}
		return nil, err
	}

	c.statsCache = stats
	c.statsCacheAt = time.Now()
	return stats, nil
}

func (c *BinanceClient) buildStats(symbol string) (*Stats, error) {
	now := time.Now().UTC()
	startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startWeek := now.AddDate(0, 0, -statsLookbackDays)

	trades, err := c.fetchAccountTrades(symbol, startWeek, now)
	if err != nil {
		return nil, err
	}
	income, err := c.fetchRealizedPnl(symbol, startWeek, now)
	if err != nil {
		return nil, err
	}
	openTrades, err := c.fetchOpenPositions(symbol)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Volume: VolumeStats{
			Daily:  sumQuoteVolume(trades, startDay),
			Weekly: sumQuoteVolume(trades, startWeek),
		},
		TradeStats:   computeTradeStats(income),
		OpenTrades:   openTrades,
		ClosedTrades: mapClosedTrades(trades, 10),
	}
	return stats, nil
}

func (c *BinanceClient) fetchAccountTrades(symbol string, start, end time.Time) ([]*futures.AccountTrade, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	trades, err := c.client.NewListAccountTradeService().
		Symbol(symbol).
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Limit(1000).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("account trades", err)
	}
	return trades, nil
}

func (c *BinanceClient) fetchRealizedPnl(symbol string, start, end time.Time) ([]*futures.IncomeHistory, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	income, err := c.client.NewGetIncomeHistoryService().
		Symbol(symbol).
		IncomeType("REALIZED_PNL").
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Limit(1000).
		Do(ctx)
	if err != nil {
		return nil, wrapErr("income history", err)
	}
	return income, nil
}

func (c *BinanceClient) fetchOpenPositions(symbol string) ([]OpenTrade, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	positions, err := c.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, wrapErr("position risk", err)
	}

	var open []OpenTrade
	for _, pos := range positions {
		amt, _ := strconv.ParseFloat(pos.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(pos.EntryPrice, 64)
		upnl, _ := strconv.ParseFloat(pos.UnRealizedProfit, 64)
		side := "BUY"
		if amt < 0 {
			side = "SELL"
		}
		open = append(open, OpenTrade{
			Symbol:        pos.Symbol,
			Side:          side,
			Size:          math.Abs(amt),
			EntryPrice:    entry,
			UnrealizedPnl: upnl,
			UpdatedAt:     time.Now().UnixMilli(),
		})
	}
	return open, nil
}

func sumQuoteVolume(trades []*futures.AccountTrade, start time.Time) float64 {
	startMs := start.UnixMilli()
	volume := 0.0
	for _, t := range trades {
		if t.Time < startMs {
			continue
		}
		quote, _ := strconv.ParseFloat(t.QuoteQuantity, 64)
		volume += quote
	}
	return math.Round(volume*100) / 100
}

func computeTradeStats(income []*futures.IncomeHistory) *TradeStats {
	stats := &TradeStats{}
	for _, item := range income {
		pnl, err := strconv.ParseFloat(item.Income, 64)
		if err != nil || pnl == 0 {
			continue
		}
		stats.Trades++
		stats.Pnl += pnl
		if pnl > 0 {
			stats.Wins++
		}
	}
	if stats.Trades > 0 {
		stats.WinRate = math.Round(float64(stats.Wins)/float64(stats.Trades)*100*100) / 100
	}
	stats.Pnl = math.Round(stats.Pnl*100) / 100
	return stats
}

func mapClosedTrades(trades []*futures.AccountTrade, limit int) []ClosedTrade {
	var closed []ClosedTrade
	for i := len(trades) - 1; i >= 0 && len(closed) < limit; i-- {
		t := trades[i]
		pnl, _ := strconv.ParseFloat(t.RealizedPnl, 64)
		if pnl == 0 {
			continue
		}
		qty, _ := strconv.ParseFloat(t.Quantity, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		// 平仓成交只有成交价，开仓价由已实现盈亏反推：
		// SELL 平多 entry = price - pnl/qty，BUY 平空 entry = price + pnl/qty
		entry := 0.0
		if qty > 0 {
			if t.Side == futures.SideTypeSell {
				entry = price - pnl/qty
			} else {
				entry = price + pnl/qty
			}
		}
		closed = append(closed, ClosedTrade{
			Symbol:     t.Symbol,
			Side:       string(t.Side),
			Qty:        qty,
			EntryPrice: math.Round(entry*10000) / 10000,
			ExitPrice:  price,
			Pnl:        pnl,
			ClosedAt:   t.Time,
		})
	}
	return closed
}
