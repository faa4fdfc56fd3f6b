// Package config 从 .env / 环境变量加载运行配置。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config 机器人全部运行参数
type Config struct {
	// 交易所
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestnet   bool

	// 交易范围
	Symbols             []string
	MonthlyVolumeTarget float64
	TradingDays         int
	Equity              float64
	PollInterval        time.Duration
	TestTradeSymbol     string
	TestTradeQty        float64

	// 风控
	MaxDailyLossPct      float64
	MaxConsecutiveLosses int
	MaxOrdersPerHour     int
	RiskPerTrade         float64

	// 成交量分配与预期剩余交易数（按策略）
	StrategyAllocations map[string]float64
	ExpectedTradesLeft  map[string]int

	// 周边设施
	PriceStreamEnabled bool
	SqlitePath         string
	TelegramToken      string
	TelegramChatID     int64
	APIAddr            string
	JWTSecret          string
	APIPassword        string
}

// Load 加载配置：先读工作目录下的 .env（不存在则忽略），再读环境变量
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  未找到 .env 文件，使用环境变量")
	}

	return &Config{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		BinanceTestnet:   envBool("BINANCE_TESTNET", true),

		Symbols:             envList("SYMBOLS", []string{"BTCUSDT"}),
		MonthlyVolumeTarget: envFloat("MONTHLY_VOLUME_TARGET", 3_000_000),
		TradingDays:         envInt("TRADING_DAYS", 30),
		Equity:              envFloat("EQUITY", 100_000),
		PollInterval:        time.Duration(envInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		TestTradeSymbol:     envStr("TEST_TRADE_SYMBOL", "BTCUSDT"),
		TestTradeQty:        envFloat("TEST_TRADE_QTY", 0.001),

		MaxDailyLossPct:      envFloat("MAX_DAILY_LOSS_PCT", 0.03),
		MaxConsecutiveLosses: envInt("MAX_CONSECUTIVE_LOSSES", 3),
		MaxOrdersPerHour:     envInt("MAX_ORDERS_PER_HOUR", 20),
		RiskPerTrade:         envFloat("RISK_PER_TRADE", 0.005),

		StrategyAllocations: map[string]float64{
			"trend":   envFloat("ALLOC_TREND", 0.25),
			"scalp":   envFloat("ALLOC_SCALP", 0.55),
			"candle3": envFloat("ALLOC_CANDLE3", 0.20),
		},
		ExpectedTradesLeft: map[string]int{
			"trend":   envInt("TRADES_LEFT_TREND", 2),
			"scalp":   envInt("TRADES_LEFT_SCALP", 20),
			"candle3": envInt("TRADES_LEFT_CANDLE3", 30),
		},

		PriceStreamEnabled: envBool("PRICE_STREAM_ENABLED", true),
		SqlitePath:         envStr("SQLITE_PATH", "trades.db"),
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     envInt64("TELEGRAM_CHAT_ID", 0),
		APIAddr:            envStr("API_ADDR", ":8080"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		APIPassword:        os.Getenv("API_PASSWORD"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  配置 %s=%q 解析失败，使用默认值 %d", key, v, def)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("⚠️  配置 %s=%q 解析失败，使用默认值 %d", key, v, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("⚠️  配置 %s=%q 解析失败，使用默认值 %g", key, v, def)
		return def
	}
	return f
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
