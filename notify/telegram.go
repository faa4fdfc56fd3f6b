// Package notify 交易事件的 Telegram 推送。
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Telegram 推送器；nil 接收者安全，未配置时所有调用都是空操作
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram 创建推送器；token 为空时返回 nil（禁用推送）
func NewTelegram(token string, chatID int64) *Telegram {
	if token == "" || chatID == 0 {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("⚠️  Telegram 初始化失败，推送已禁用: %v", err)
		return nil
	}
	log.Printf("📨 Telegram 推送已启用: @%s", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID}
}

// Notify 发送消息，失败只记日志不影响交易流程
func (t *Telegram) Notify(message string) {
	if t == nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("⚠️  Telegram 发送失败: %v", err)
	}
}
