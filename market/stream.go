package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	streamBaseURL      = "wss://fstream.binance.com/stream"
	streamReconnectGap = 5 * time.Second
	streamReadTimeout  = 90 * time.Second
	priceStaleAfter    = 30 * time.Second
)

// PriceStream 实时标记价格缓存
// 通过组合流订阅多个交易对的标记价格，监控goroutine优先读缓存，
// 缓存失效时调用方再退回REST接口。
type PriceStream struct {
	symbols   []string
	prices    map[string]streamPrice
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
	isRunning bool
}

type streamPrice struct {
	value     float64
	updatedAt time.Time
}

type combinedStreamMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

// NewPriceStream 创建价格流缓存
func NewPriceStream(symbols []string) *PriceStream {
	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		normalized = append(normalized, Normalize(s))
	}
	return &PriceStream{
		symbols: normalized,
		prices:  make(map[string]streamPrice),
		stopCh:  make(chan struct{}),
	}
}

// Start 启动价格流（独立goroutine，断线自动重连）
func (ps *PriceStream) Start() {
	ps.mu.Lock()
	if ps.isRunning {
		ps.mu.Unlock()
		log.Println("⚠️  [价格流] 已在运行，跳过启动")
		return
	}
	ps.stopCh = make(chan struct{})
	ps.isRunning = true
	ps.mu.Unlock()

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		for {
			select {
			case <-ps.stopCh:
				return
			default:
			}

			if err := ps.runConnection(); err != nil {
				log.Printf("⚠️  [价格流] 连接中断: %v，%v后重连", err, streamReconnectGap)
			}

			select {
			case <-ps.stopCh:
				return
			case <-time.After(streamReconnectGap):
			}
		}
	}()

	log.Printf("🚀 [价格流] 启动，订阅 %d 个交易对", len(ps.symbols))
}

// Stop 停止价格流并等待goroutine退出
func (ps *PriceStream) Stop() {
	ps.mu.Lock()
	if !ps.isRunning {
		ps.mu.Unlock()
		return
	}
	ps.isRunning = false
	ps.mu.Unlock()

	close(ps.stopCh)
	ps.wg.Wait()
	log.Println("⏹  [价格流] 已停止")
}

// GetPrice 读取缓存的最新标记价格；无缓存或数据过期时返回 false
func (ps *PriceStream) GetPrice(symbol string) (float64, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, ok := ps.prices[Normalize(symbol)]
	if !ok || time.Since(p.updatedAt) > priceStaleAfter {
		return 0, false
	}
	return p.value, true
}

func (ps *PriceStream) streamURL() string {
	streams := make([]string, 0, len(ps.symbols))
	for _, s := range ps.symbols {
		streams = append(streams, strings.ToLower(s)+"@markPrice@1s")
	}
	return streamBaseURL + "?streams=" + strings.Join(streams, "/")
}

func (ps *PriceStream) runConnection() error {
	conn, _, err := websocket.DefaultDialer.Dial(ps.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("拨号失败: %w", err)
	}
	defer conn.Close()

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-ps.stopCh:
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg combinedStreamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Data.Symbol == "" || msg.Data.Price == "" {
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		ps.mu.Lock()
		ps.prices[msg.Data.Symbol] = streamPrice{value: price, updatedAt: time.Now()}
		ps.mu.Unlock()
	}
}
