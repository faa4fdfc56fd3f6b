package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"tribot/api"
	"tribot/config"
	"tribot/exchange"
	"tribot/logger"
	"tribot/market"
	"tribot/notify"
	"tribot/store"
	"tribot/trader"
)

func main() {
	logger.Init()
	cfg := config.Load()

	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		log.Fatal("❌ 缺少 BINANCE_API_KEY / BINANCE_API_SECRET")
	}

	client := exchange.NewBinanceClient(exchange.BinanceConfig{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Testnet:   cfg.BinanceTestnet,
	})

	trades, err := store.Open(cfg.SqlitePath)
	if err != nil {
		log.Fatalf("❌ 成交日志初始化失败: %v", err)
	}
	defer trades.Close()

	notifier := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)

	var stream *market.PriceStream
	if cfg.PriceStreamEnabled {
		stream = market.NewPriceStream(cfg.Symbols)
		stream.Start()
		defer stream.Stop()
	}

	session := trader.NewSessionManager()
	position := trader.NewPositionManager()
	risk := trader.NewRiskManager(trader.RiskConfig{
		MaxDailyLossPct:      cfg.MaxDailyLossPct,
		MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		MaxOrdersPerHour:     cfg.MaxOrdersPerHour,
		RiskPerTradePct:      cfg.RiskPerTrade,
	})
	volume := trader.NewVolumeManager(trader.VolumeConfig{
		MonthlyTarget: cfg.MonthlyVolumeTarget,
		TradingDays:   cfg.TradingDays,
		Allocations:   cfg.StrategyAllocations,
	})
	executor := trader.NewOrderManager(client, position, risk, volume, trades, notifier)

	bot := trader.NewBot(trader.BotConfig{
		Symbols:            cfg.Symbols,
		PollInterval:       cfg.PollInterval,
		Equity:             cfg.Equity,
		RiskPerTrade:       cfg.RiskPerTrade,
		ExpectedTradesLeft: cfg.ExpectedTradesLeft,
		TestTradeSymbol:    cfg.TestTradeSymbol,
		TestTradeQty:       cfg.TestTradeQty,
	}, client, session, position, risk, volume, executor, stream, notifier)

	server := api.NewServer(bot, trades, cfg.JWTSecret, cfg.APIPassword)
	go func() {
		if err := server.Run(cfg.APIAddr); err != nil {
			log.Fatalf("❌ 控制面启动失败: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("⏹  收到信号 %s，开始关停", sig)

	bot.Stop()
	log.Println("✅ 进程退出")
}
