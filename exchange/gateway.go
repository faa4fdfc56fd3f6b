// Package exchange 定义机器人消费的交易所能力集，以及 Binance 合约绑定。
package exchange

import (
	"errors"

	"tribot/market"
)

// 订单回报状态（归一化后的取值）
const (
	OrderStatusOpen     = "open"   // 已接受，未完全成交
	OrderStatusClosed   = "closed" // 已成交
	OrderStatusRejected = "rejected"
)

// ErrRetryable 标记可重试的临时性错误（网络抖动、限频等）。
// status 快照路径用它来决定是否记录 lastError。
var ErrRetryable = errors.New("retryable error occurred")

// Retryable 判断错误是否为临时性错误
func Retryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// OrderResult 下单/平仓回报
type OrderResult struct {
	OrderID  string  `json:"order_id"`
	Status   string  `json:"status"`
	Filled   float64 `json:"filled"`
	AvgPrice float64 `json:"avg_price,omitempty"`
}

// Accepted 交易所是否接受了订单（open/closed 均算接受）
func (r *OrderResult) Accepted() bool {
	return r != nil && (r.Status == OrderStatusOpen || r.Status == OrderStatusClosed)
}

// Balance 账户权益
type Balance struct {
	TotalEquity      float64 `json:"total_equity"`
	AvailableBalance float64 `json:"available_balance"`
}

// VolumeStats 交易所侧统计的成交额
type VolumeStats struct {
	Daily  float64 `json:"daily"`
	Weekly float64 `json:"weekly"`
}

// TradeStats 交易所侧统计的已平仓盈亏
type TradeStats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	Pnl     float64 `json:"pnl"`
}

// OpenTrade 交易所侧的持仓快照
type OpenTrade struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	UpdatedAt     int64   `json:"updated_at"`
}

// ClosedTrade 交易所侧的已平仓记录
type ClosedTrade struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Qty        float64 `json:"qty"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Pnl        float64 `json:"pnl"`
	ClosedAt   int64   `json:"closed_at"`
}

// Stats 交易所统计快照（约15秒缓存，出错时退回上次缓存）
type Stats struct {
	Volume       VolumeStats   `json:"volume"`
	TradeStats   *TradeStats   `json:"trade_stats,omitempty"`
	OpenTrades   []OpenTrade   `json:"open_trades,omitempty"`
	ClosedTrades []ClosedTrade `json:"closed_trades,omitempty"`
}

// Gateway 机器人消费的交易所接口。
// 实现必须自带超时配置；调用方不再额外包一层超时。
type Gateway interface {
	// CreateOrder 下市价/限价单，price 仅限价单需要（<=0 表示市价）
	CreateOrder(symbol, side, orderType string, amount, price float64) (*OrderResult, error)
	// ClosePosition 只减仓市价平仓
	ClosePosition(symbol, side string, amount float64) (*OrderResult, error)
	// FetchOHLCV 获取K线，oldest->newest
	FetchOHLCV(symbol, timeframe string, limit int) ([]market.Kline, error)
	// GetBalance 查询账户权益
	GetBalance() (*Balance, error)
	// GetLastPrice 查询最新成交价
	GetLastPrice(symbol string) (float64, error)
	// NormalizeQty 按合约步进向下取整；低于最小下单量返回 0
	NormalizeQty(symbol string, qty float64) (float64, error)
	// GetExchangeStats 查询交易所侧统计（带缓存）
	GetExchangeStats(symbols []string) (*Stats, error)
}
