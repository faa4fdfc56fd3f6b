package trader

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"tribot/exchange"
	"tribot/market"
	"tribot/strategy"
)

// BotState 机器人状态机状态。Terminated 和 Error 为终态，不再接受 start。
type BotState int

const (
	StateStopped BotState = iota
	StateRunning
	StatePaused
	StateTerminated
	StateError
)

func (s BotState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateTerminated:
		return "TERMINATED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("BotState(%d)", int(s))
	}
}

// BotMode 当前活动模式（仅用于观测，不参与状态机判断）
type BotMode int

const (
	ModeIdle BotMode = iota
	ModeTestTrade
	ModeScanning
)

func (m BotMode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeTestTrade:
		return "TEST_TRADE"
	case ModeScanning:
		return "SCANNING"
	default:
		return fmt.Sprintf("BotMode(%d)", int(m))
	}
}

const (
	fetchBackoffInterval = 120 * time.Second // 行情拉取失败后的退避时间
	monitorPollInterval  = 1 * time.Second   // 持仓监控轮询频率
	candle3HoldDuration  = 1800 * time.Second
	testTradeHoldTime    = 5 * time.Second
)

// 每个策略读取的 K 线周期
var strategyTimeframes = map[string]string{
	strategy.IDTrend:   "1h",
	strategy.IDScalp:   "5m",
	strategy.IDCandle3: "3m",
}

const klineFetchLimit = 300

// BotConfig 机器人运行参数
type BotConfig struct {
	Symbols            []string
	PollInterval       time.Duration
	Equity             float64 // 权益基线，用于风控和仓位计算
	RiskPerTrade       float64
	ExpectedTradesLeft map[string]int
	TestTradeSymbol    string
	TestTradeQty       float64
	TestTradeHold      time.Duration // <=0 时用默认值
	Candle3Hold        time.Duration // <=0 时用默认值
}

// Bot 多策略交易机器人：状态机 + 主轮询循环 + 持仓监控调度。
// 状态、模式、已启用策略集由 mu 保护；所有交易决策经 executor 串行化。
type Bot struct {
	config   BotConfig
	client   exchange.Gateway
	session  *SessionManager
	position *PositionManager
	risk     *RiskManager
	volume   *VolumeManager
	executor *OrderManager
	stream   *market.PriceStream // 可为 nil，行情兜底走 REST
	notifier Notifier

	strategies map[string]strategy.Strategy

	mu         sync.Mutex
	state      BotState
	mode       BotMode
	lastError  string
	enabled    map[string]bool
	testActive bool
	loopActive bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewBot 创建机器人；strategies 为全部已注册策略，启用子集在 Start 时指定
func NewBot(config BotConfig, client exchange.Gateway, session *SessionManager, position *PositionManager, risk *RiskManager, volume *VolumeManager, executor *OrderManager, stream *market.PriceStream, notifier Notifier) *Bot {
	strategies := make(map[string]strategy.Strategy)
	for _, s := range []strategy.Strategy{
		strategy.NewTrendBreakout(strategy.DefaultTrendBreakoutConfig()),
		strategy.NewMeanReversion(strategy.DefaultMeanReversionConfig()),
		strategy.NewCandle3(strategy.DefaultCandle3Config()),
	} {
		strategies[s.ID()] = s
	}
	return &Bot{
		config:     config,
		client:     client,
		session:    session,
		position:   position,
		risk:       risk,
		volume:     volume,
		executor:   executor,
		stream:     stream,
		notifier:   notifier,
		strategies: strategies,
		state:      StateStopped,
		mode:       ModeIdle,
		enabled:    make(map[string]bool),
	}
}

// Start 启动机器人（Paused 状态下再次调用即恢复运行）。
// strategyIDs 为空表示启用全部策略；runTestTrade 为 true 时先跑一笔测试单，
// 期间暂停策略派发，完成后自动恢复扫描。
func (b *Bot) Start(strategyIDs []string, runTestTrade bool) error {
	b.mu.Lock()

	if b.state == StateTerminated || b.state == StateError {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("机器人处于 %s 状态，无法启动", state)
	}

	if len(strategyIDs) == 0 {
		strategyIDs = strategy.AllIDs()
	}
	b.enabled = make(map[string]bool)
	for _, id := range strategyIDs {
		if _, ok := b.strategies[id]; ok {
			b.enabled[id] = true
		} else {
			log.Printf("⚠️  忽略未知策略: %s", id)
		}
	}

	b.state = StateRunning
	b.lastError = ""

	startLoop := !b.loopActive
	if startLoop {
		b.stopCh = make(chan struct{})
		b.loopActive = true
	}

	if runTestTrade {
		b.mode = ModeTestTrade
		b.testActive = true
	} else {
		b.mode = ModeScanning
	}
	stopCh := b.stopCh
	b.mu.Unlock()

	if startLoop {
		b.wg.Add(1)
		go b.run(stopCh)
	}
	if runTestTrade {
		b.wg.Add(1)
		go b.runTestTrade(stopCh)
	}

	log.Printf("🚀 机器人启动: strategies=%v testTrade=%v", strategyIDs, runTestTrade)
	return nil
}

// Stop 强制停止：任何状态下都生效，停止主循环并等待所有后台任务退出
func (b *Bot) Stop() {
	b.mu.Lock()
	b.state = StateStopped
	b.mode = ModeIdle
	wasActive := b.loopActive
	if wasActive {
		b.loopActive = false
		close(b.stopCh)
	}
	b.mu.Unlock()

	if wasActive {
		b.wg.Wait()
	}
	log.Println("⏹  机器人已停止")
}

// Pause 暂停策略派发（仅 Running 状态可暂停，主循环保持存活）
func (b *Bot) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateRunning {
		return fmt.Errorf("机器人处于 %s 状态，无法暂停", b.state)
	}
	b.state = StatePaused
	b.mode = ModeIdle
	log.Println("⏸  机器人已暂停")
	return nil
}

// Terminate 终止机器人：进入终态，之后拒绝一切 start
func (b *Bot) Terminate() {
	b.mu.Lock()
	if b.state == StateTerminated {
		b.mu.Unlock()
		return
	}
	b.state = StateTerminated
	b.mode = ModeIdle
	wasActive := b.loopActive
	if wasActive {
		b.loopActive = false
		close(b.stopCh)
	}
	b.mu.Unlock()

	if wasActive {
		b.wg.Wait()
	}
	log.Println("🛑 机器人已终止")
}

// State 返回当前状态
func (b *Bot) State() BotState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Mode 返回当前模式
func (b *Bot) Mode() BotMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *Bot) setMode(mode BotMode) {
	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()
}

func (b *Bot) setLastError(err error) {
	b.mu.Lock()
	b.lastError = err.Error()
	b.mu.Unlock()
}

// fail 不可恢复错误：记录错误并进入 Error 终态，主循环随后退出
func (b *Bot) fail(err error) {
	b.mu.Lock()
	b.lastError = err.Error()
	b.state = StateError
	b.mode = ModeIdle
	b.mu.Unlock()

	log.Printf("❌ 不可恢复错误，机器人进入 ERROR 状态: %v", err)
	if b.notifier != nil {
		b.notifier.Notify(fmt.Sprintf("❌ 机器人停机: %v", err))
	}
}

// run 主轮询循环：拉取行情 → 逐币种逐策略派发 → 休眠。
// 行情失败退避 120 秒重试；派发出错则循环退出。
func (b *Bot) run(stopCh chan struct{}) {
	defer b.wg.Done()

	log.Printf("📡 主循环启动: symbols=%v interval=%s", b.config.Symbols, b.config.PollInterval)

	for {
		select {
		case <-stopCh:
			log.Println("⏹  主循环退出")
			return
		default:
		}

		b.mu.Lock()
		state := b.state
		testActive := b.testActive
		b.mu.Unlock()

		if state == StateError || state == StateTerminated {
			return
		}
		if state != StateRunning || testActive {
			if !b.sleep(stopCh, b.config.PollInterval) {
				return
			}
			continue
		}

		data, err := b.fetchMarketData()
		if err != nil {
			log.Printf("⚠️  行情拉取失败，%s 后重试: %v", fetchBackoffInterval, err)
			b.setLastError(err)
			b.setMode(ModeIdle)
			if !b.sleep(stopCh, fetchBackoffInterval) {
				return
			}
			continue
		}

		b.setMode(ModeScanning)
		if !b.dispatch(data, time.Now().UTC()) {
			return
		}

		if !b.sleep(stopCh, b.config.PollInterval) {
			return
		}
	}
}

// sleep 可中断休眠；返回 false 表示收到停止信号
func (b *Bot) sleep(stopCh chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	}
}

// fetchMarketData 拉取全部币种的三个周期 K 线
func (b *Bot) fetchMarketData() (map[string]map[string][]market.Kline, error) {
	data := make(map[string]map[string][]market.Kline)
	for _, symbol := range b.config.Symbols {
		frames := make(map[string][]market.Kline)
		for _, timeframe := range []string{"1h", "5m", "3m"} {
			klines, err := b.client.FetchOHLCV(symbol, timeframe, klineFetchLimit)
			if err != nil {
				return nil, fmt.Errorf("拉取 %s %s K线失败: %w", symbol, timeframe, err)
			}
			frames[timeframe] = klines
		}
		data[symbol] = frames
	}
	return data, nil
}

// dispatch 单轮派发：按固定顺序遍历币种和策略，逐一评估信号。
// 返回 false 表示发生不可恢复错误，循环应退出。
func (b *Bot) dispatch(data map[string]map[string][]market.Kline, ts time.Time) bool {
	if !b.risk.CanTrade(b.config.Equity, ts) {
		log.Println("🛡️  风控限制，本轮跳过全部策略")
		return true
	}

	session := b.session.CurrentSession(ts)

	for _, symbol := range b.config.Symbols {
		frames, ok := data[symbol]
		if !ok {
			continue
		}
		for _, strategyID := range strategy.AllIDs() {
			b.mu.Lock()
			enabled := b.enabled[strategyID]
			b.mu.Unlock()
			if !enabled {
				continue
			}

			mult, allowed := b.sessionGate(session, strategyID, ts)
			if !allowed {
				continue
			}
			if b.position.HasOpen(symbol, strategyID) {
				continue
			}

			candles := frames[strategyTimeframes[strategyID]]
			size := b.sizeForStrategy(strategyID, symbol, candles, mult, ts)
			if size <= 0 {
				continue
			}

			signal := b.strategies[strategyID].GenerateSignal(candles, size, symbol, ts)
			if signal == nil {
				continue
			}

			orderID, err := b.executor.ExecuteSignal(signal, ts)
			if err != nil {
				b.fail(err)
				return false
			}
			if orderID != "" && strategyID == strategy.IDCandle3 {
				b.spawnMonitor(symbol, strategyID)
			}
		}
	}
	return true
}

// sessionGate 时段准入：趋势/剥头皮要求 LONDON 或 NY 且乘数非零；
// 三连阳策略要求 ASIA 时段、scalp 乘数非零且处于日内窗口内。
func (b *Bot) sessionGate(session SessionPolicy, strategyID string, ts time.Time) (float64, bool) {
	switch strategyID {
	case strategy.IDCandle3:
		if session.Name != SessionAsia {
			return 0, false
		}
		mult := session.MultOrZero(strategy.IDScalp)
		if mult <= 0 {
			return 0, false
		}
		if !b.session.IsWithinWindow(ts, 1, 0, 15, 30, 1) {
			return 0, false
		}
		return mult, true
	default:
		if session.Name != SessionLondon && session.Name != SessionNewYork {
			return 0, false
		}
		mult := session.MultOrZero(strategyID)
		if mult <= 0 {
			return 0, false
		}
		return mult, true
	}
}

// sizeForStrategy 计算下单数量：风险/成交量约束取最小，乘以时段乘数后按合约步进取整
func (b *Bot) sizeForStrategy(strategyID, symbol string, candles []market.Kline, mult float64, ts time.Time) float64 {
	if len(candles) == 0 {
		return 0
	}
	price := candles[len(candles)-1].Close
	atr, ok := market.ATR(market.Highs(candles), market.Lows(candles), market.Closes(candles), 14)
	if !ok {
		return 0
	}

	size := b.volume.ComputeSize(strategyID, b.config.RiskPerTrade, b.config.Equity, atr, 1.0,
		b.config.ExpectedTradesLeft[strategyID], price, ts)
	size *= mult
	if size <= 0 {
		return 0
	}

	normalized, err := b.client.NormalizeQty(symbol, size)
	if err != nil {
		log.Printf("⚠️  数量规整失败 %s: %v", symbol, err)
		return 0
	}
	return normalized
}

// spawnMonitor 为三连阳持仓启动后台监控：1Hz 轮询当前价，
// 按 止损 > 持仓到期 > 外部停止 的优先级平仓后退出
func (b *Bot) spawnMonitor(symbol, strategyID string) {
	b.mu.Lock()
	stopCh := b.stopCh
	b.mu.Unlock()
	hold := b.config.Candle3Hold
	if hold <= 0 {
		hold = candle3HoldDuration
	}
	deadline := time.Now().Add(hold)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(monitorPollInterval)
		defer ticker.Stop()

		log.Printf("👁  持仓监控启动: %s %s (最长持有 %s)", symbol, strategyID, hold)

		for {
			select {
			case <-ticker.C:
			case <-stopCh:
			}

			position, ok := b.position.Get(symbol, strategyID)
			if !ok {
				log.Printf("👁  持仓已不存在，监控退出: %s %s", symbol, strategyID)
				return
			}

			// 先判定到期/停止，再取价：行情抖动不能让持仓超期或阻塞停机
			price, priceErr := b.currentPrice(symbol)

			var reason string
			switch {
			case priceErr == nil && stopBreached(position, price):
				reason = "止损触发"
			case time.Now().After(deadline):
				reason = "持仓到期"
			case b.State() != StateRunning:
				reason = "机器人停止，强制平仓"
			default:
				if priceErr != nil {
					log.Printf("⚠️  监控获取价格失败 %s: %v", symbol, priceErr)
				}
				continue
			}

			if priceErr != nil {
				log.Printf("⚠️  平仓取价失败 %s: %v，按开仓价 %.4f 入账", symbol, priceErr, position.EntryPrice)
				b.setLastError(priceErr)
				price = position.EntryPrice
			}

			log.Printf("👁  %s: %s %s @ %.4f", reason, symbol, strategyID, price)
			if err := b.executor.ClosePosition(symbol, strategyID, price, time.Now().UTC()); err != nil {
				b.fail(err)
			}
			return
		}
	}()
}

// stopBreached 判断当前价是否击穿止损
func stopBreached(position Position, price float64) bool {
	if position.StopLoss <= 0 {
		return false
	}
	if position.Side == strategy.SideBuy {
		return price <= position.StopLoss
	}
	return price >= position.StopLoss
}

// currentPrice 取当前价：优先行情流缓存，失效则回退 REST
func (b *Bot) currentPrice(symbol string) (float64, error) {
	if b.stream != nil {
		if price, ok := b.stream.GetPrice(symbol); ok {
			return price, nil
		}
	}
	return b.client.GetLastPrice(symbol)
}

// runTestTrade 一次性测试单：小额买入 → 短暂持有 → 卖出。
// 取价失败只记录 lastError；下单或平仓失败视为不可恢复，进入 Error 状态。
func (b *Bot) runTestTrade(stopCh chan struct{}) {
	defer b.wg.Done()
	defer func() {
		b.mu.Lock()
		b.testActive = false
		if b.state == StateRunning {
			b.mode = ModeScanning
		}
		b.mu.Unlock()
	}()

	symbol := b.config.TestTradeSymbol
	qty := b.config.TestTradeQty
	log.Printf("🧪 测试单开始: %s qty=%.6f", symbol, qty)

	price, err := b.client.GetLastPrice(symbol)
	if err != nil {
		log.Printf("❌ 测试单获取价格失败: %v", err)
		b.setLastError(err)
		return
	}

	signal := &strategy.Signal{
		Symbol:     symbol,
		StrategyID: strategy.IDTest,
		Side:       strategy.SideBuy,
		Timestamp:  time.Now().UTC(),
		Price:      price,
		Size:       qty,
		Reason:     "测试单",
	}
	if _, err := b.executor.ExecuteSignal(signal, time.Now().UTC()); err != nil {
		log.Printf("❌ 测试单买入失败: %v", err)
		b.fail(err)
		return
	}

	hold := b.config.TestTradeHold
	if hold <= 0 {
		hold = testTradeHoldTime
	}
	b.sleep(stopCh, hold)

	exitPrice, err := b.client.GetLastPrice(symbol)
	if err != nil {
		exitPrice = price
	}
	if err := b.executor.ClosePosition(symbol, strategy.IDTest, exitPrice, time.Now().UTC()); err != nil {
		log.Printf("❌ 测试单卖出失败: %v", err)
		b.fail(err)
		return
	}
	log.Println("✅ 测试单完成")
}

// BotStatus 状态快照，字段覆盖控制面需要的全部信息
type BotStatus struct {
	State          string                 `json:"state"`
	Mode           string                 `json:"mode"`
	DailyVolume    float64                `json:"daily_volume"`
	DailyTarget    float64                `json:"daily_target"`
	MonthlyVolume  float64                `json:"monthly_volume"`
	ExchangeVolume *exchange.VolumeStats  `json:"exchange_volume,omitempty"`
	StrategyVolume map[string]float64     `json:"strategy_volume"`
	OpenPositions  int                    `json:"open_positions"`
	LastError      string                 `json:"last_error,omitempty"`
	Balance        *exchange.Balance      `json:"balance,omitempty"`
	TradeStats     TradeStats             `json:"trade_stats"`
	OpenTrades     interface{}            `json:"open_trades"`
	ClosedTrades   interface{}            `json:"closed_trades"`
}

// Status 组装状态快照：台账数据为默认值，交易所统计可用时逐字段覆盖。
// 交易所查询的瞬时错误不记录、不改变状态。
func (b *Bot) Status() BotStatus {
	b.mu.Lock()
	status := BotStatus{
		State:     b.state.String(),
		Mode:      b.mode.String(),
		LastError: b.lastError,
	}
	b.mu.Unlock()

	status.DailyVolume = b.volume.DailyVolume()
	status.DailyTarget = b.volume.DailyTarget()
	status.MonthlyVolume = b.volume.MonthlyVolume()
	status.StrategyVolume = b.volume.StrategyVolume()
	status.OpenPositions = b.position.OpenCount()
	status.TradeStats = b.position.Stats()
	status.OpenTrades = b.position.OpenPositions()
	status.ClosedTrades = b.position.ClosedTrades(50)

	if balance, err := b.client.GetBalance(); err != nil {
		if !exchange.Retryable(err) {
			b.setLastError(err)
			status.LastError = err.Error()
		}
	} else {
		status.Balance = balance
	}

	if stats, err := b.client.GetExchangeStats(b.config.Symbols); err != nil {
		if !exchange.Retryable(err) {
			b.setLastError(err)
			status.LastError = err.Error()
		}
	} else if stats != nil {
		status.ExchangeVolume = &stats.Volume
		status.DailyVolume = stats.Volume.Daily
		if stats.TradeStats != nil {
			status.TradeStats.Trades = stats.TradeStats.Trades
			status.TradeStats.Wins = stats.TradeStats.Wins
			status.TradeStats.WinRate = stats.TradeStats.WinRate
			status.TradeStats.Pnl = stats.TradeStats.Pnl
		}
		if len(stats.OpenTrades) > 0 {
			status.OpenTrades = stats.OpenTrades
			status.OpenPositions = len(stats.OpenTrades)
		}
		if len(stats.ClosedTrades) > 0 {
			status.ClosedTrades = stats.ClosedTrades
		}
	}

	return status
}
