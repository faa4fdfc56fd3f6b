package trader

import (
	"fmt"
	"sync"

	"tribot/exchange"
	"tribot/market"
)

// fakeGateway 测试用交易所：记录全部调用，可注入错误和行情
type fakeGateway struct {
	mu sync.Mutex

	orders      []fakeOrder
	closes      []fakeOrder
	klines      map[string][]market.Kline // key: symbol_timeframe
	lastPrice   float64
	balance     exchange.Balance
	stats       *exchange.Stats
	orderErr    error
	closeErr    error
	fetchErr    error
	priceErr    error
	balanceErr  error
	statsErr    error
	rejectNext  bool
	nextOrderID int
}

type fakeOrder struct {
	Symbol string
	Side   string
	Amount float64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		klines:    make(map[string][]market.Kline),
		lastPrice: 100,
		balance:   exchange.Balance{TotalEquity: 100_000, AvailableBalance: 100_000},
	}
}

func (g *fakeGateway) CreateOrder(symbol, side, orderType string, amount, price float64) (*exchange.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	if g.rejectNext {
		g.rejectNext = false
		return &exchange.OrderResult{Status: exchange.OrderStatusRejected}, nil
	}
	g.orders = append(g.orders, fakeOrder{Symbol: symbol, Side: side, Amount: amount})
	g.nextOrderID++
	return &exchange.OrderResult{
		OrderID: fmt.Sprintf("order-%d", g.nextOrderID),
		Status:  exchange.OrderStatusClosed,
		Filled:  amount,
	}, nil
}

func (g *fakeGateway) ClosePosition(symbol, side string, amount float64) (*exchange.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closeErr != nil {
		return nil, g.closeErr
	}
	g.closes = append(g.closes, fakeOrder{Symbol: symbol, Side: side, Amount: amount})
	g.nextOrderID++
	return &exchange.OrderResult{
		OrderID: fmt.Sprintf("order-%d", g.nextOrderID),
		Status:  exchange.OrderStatusClosed,
		Filled:  amount,
	}, nil
}

func (g *fakeGateway) FetchOHLCV(symbol, timeframe string, limit int) ([]market.Kline, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.klines[symbol+"_"+timeframe], nil
}

func (g *fakeGateway) GetBalance() (*exchange.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balanceErr != nil {
		return nil, g.balanceErr
	}
	b := g.balance
	return &b, nil
}

func (g *fakeGateway) GetLastPrice(symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.priceErr != nil {
		return 0, g.priceErr
	}
	return g.lastPrice, nil
}

func (g *fakeGateway) NormalizeQty(symbol string, qty float64) (float64, error) {
	return qty, nil
}

func (g *fakeGateway) GetExchangeStats(symbols []string) (*exchange.Stats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statsErr != nil {
		return nil, g.statsErr
	}
	return g.stats, nil
}

func (g *fakeGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}

func (g *fakeGateway) closeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.closes)
}

func (g *fakeGateway) setLastPrice(p float64) {
	g.mu.Lock()
	g.lastPrice = p
	g.mu.Unlock()
}
