package trader

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"tribot/exchange"
	"tribot/strategy"
)

// Notifier 交易事件通知（可为 nil）
type Notifier interface {
	Notify(message string)
}

// Journal 已平仓记录的持久化日志（可为 nil）
type Journal interface {
	Append(record TradeRecord) error
}

// OrderManager 把交易信号翻译成交易所订单，并原子地更新台账/风控/成交量。
// mu 串行化所有交易决策：主循环、测试单任务和持仓监控对同一状态的
// "检查-再操作"序列互不交错，这是台账唯一性不变式的保证。
type OrderManager struct {
	client   exchange.Gateway
	position *PositionManager
	risk     *RiskManager
	volume   *VolumeManager
	journal  Journal
	notifier Notifier

	mu sync.Mutex
}

// NewOrderManager 创建订单执行器；journal/notifier 可为 nil
func NewOrderManager(client exchange.Gateway, position *PositionManager, risk *RiskManager, volume *VolumeManager, journal Journal, notifier Notifier) *OrderManager {
	return &OrderManager{
		client:   client,
		position: position,
		risk:     risk,
		volume:   volume,
		journal:  journal,
		notifier: notifier,
	}
}

// ExecuteSignal 执行交易信号。已有同键持仓时静默跳过（返回空订单号）。
// 只有交易所接受订单后才写台账、登记成交额。
func (om *OrderManager) ExecuteSignal(signal *strategy.Signal, ts time.Time) (string, error) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if om.position.HasOpen(signal.Symbol, signal.StrategyID) {
		return "", nil
	}

	om.risk.RegisterOrder(ts)

	result, err := om.client.CreateOrder(signal.Symbol, strings.ToLower(string(signal.Side)), "market", signal.Size, 0)
	if err != nil {
		return "", fmt.Errorf("下单失败 %s %s: %w", signal.Symbol, signal.StrategyID, err)
	}
	if !result.Accepted() {
		log.Printf("⚠️  订单未被接受: %s %s status=%s", signal.Symbol, signal.StrategyID, result.Status)
		return "", nil
	}

	om.position.Open(Position{
		Symbol:     signal.Symbol,
		StrategyID: signal.StrategyID,
		Side:       signal.Side,
		Size:       signal.Size,
		EntryPrice: signal.Price,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		HasTarget:  signal.HasTarget,
		OpenedAt:   signal.Timestamp,
	})
	om.volume.RegisterTrade(signal.StrategyID, signal.Price*signal.Size, ts)

	log.Printf("✅ 开仓: %s %s %s size=%.6f entry=%.4f stop=%.4f (%s)",
		signal.Symbol, signal.StrategyID, signal.Side, signal.Size, signal.Price, signal.StopLoss, signal.Reason)
	om.notify(fmt.Sprintf("📈 开仓 %s %s %s @ %.4f size=%.6f", signal.Symbol, signal.StrategyID, signal.Side, signal.Price, signal.Size))

	return result.OrderID, nil
}

// ClosePosition 平掉指定持仓。持仓不存在时直接返回 nil；
// 交易所平仓成功后结算盈亏并喂给风控。
func (om *OrderManager) ClosePosition(symbol, strategyID string, exitPrice float64, ts time.Time) error {
	om.mu.Lock()
	defer om.mu.Unlock()

	position, ok := om.position.Get(symbol, strategyID)
	if !ok {
		return nil
	}

	closeSide := position.Side.Opposite()
	if _, err := om.client.ClosePosition(symbol, strings.ToLower(string(closeSide)), position.Size); err != nil {
		return fmt.Errorf("平仓失败 %s %s: %w", symbol, strategyID, err)
	}

	record := om.position.CloseWithExit(symbol, strategyID, exitPrice, ts)
	if record == nil {
		return nil
	}
	om.risk.RegisterPnl(record.Pnl)

	if om.journal != nil {
		if err := om.journal.Append(*record); err != nil {
			log.Printf("⚠️  写入成交日志失败: %v", err)
		}
	}

	log.Printf("✅ 平仓: %s %s %s exit=%.4f pnl=%.4f", symbol, strategyID, record.Side, exitPrice, record.Pnl)
	om.notify(fmt.Sprintf("📉 平仓 %s %s @ %.4f pnl=%.4f", symbol, strategyID, exitPrice, record.Pnl))
	return nil
}

func (om *OrderManager) notify(message string) {
	if om.notifier != nil {
		om.notifier.Notify(message)
	}
}
