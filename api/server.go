// Package api 机器人的 HTTP 控制面：启停控制 + 状态查询。
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"tribot/store"
	"tribot/trader"
)

const tokenTTL = 24 * time.Hour

// Server 控制面服务。jwtSecret 为空时不启用鉴权。
type Server struct {
	bot       *trader.Bot
	trades    *store.TradeStore
	jwtSecret string
	password  string
	engine    *gin.Engine
}

// NewServer 创建控制面；trades 可为 nil（未启用持久化时 /bot/trades 返回空）
func NewServer(bot *trader.Bot, trades *store.TradeStore, jwtSecret, password string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		bot:       bot,
		trades:    trades,
		jwtSecret: jwtSecret,
		password:  password,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	if s.jwtSecret != "" {
		s.engine.POST("/auth/login", s.handleLogin)
	}

	group := s.engine.Group("/bot")
	if s.jwtSecret != "" {
		group.Use(s.authRequired())
	}
	group.POST("/start", s.handleStart)
	group.POST("/stop", s.handleStop)
	group.POST("/pause", s.handlePause)
	group.POST("/terminate", s.handleTerminate)
	group.GET("/status", s.handleStatus)
	group.GET("/trades", s.handleTrades)
}

// Run 阻塞运行 HTTP 服务
func (s *Server) Run(addr string) error {
	log.Printf("🌐 控制面监听: %s", addr)
	return s.engine.Run(addr)
}

// Handler 返回底层 http.Handler（测试用）
func (s *Server) Handler() http.Handler {
	return s.engine
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}
	if s.password == "" || req.Password != s.password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	claims := jwt.MapClaims{
		"sub": "bot-admin",
		"exp": time.Now().Add(tokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token signing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}

// authRequired 校验 Authorization: Bearer <token>
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

type startRequest struct {
	Strategies []string `json:"strategies"`
	TestTrade  *bool    `json:"test_trade"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	testTrade := true
	if req.TestTrade != nil {
		testTrade = *req.TestTrade
	}
	if err := s.bot.Start(req.Strategies, testTrade); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStop(c *gin.Context) {
	s.bot.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePause(c *gin.Context) {
	if err := s.bot.Pause(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTerminate(c *gin.Context) {
	s.bot.Terminate()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.trades == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []trader.TradeRecord{}})
		return
	}
	records, err := s.trades.Recent(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []trader.TradeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": records})
}
