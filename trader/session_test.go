package trader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentSession(t *testing.T) {
	m := NewSessionManager()

	asia := m.CurrentSession(time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, SessionAsia, asia.Name)
	assert.Equal(t, 0.6, asia.MultOrZero("scalp"))
	assert.Equal(t, 0.3, asia.MultOrZero("trend"))

	london := m.CurrentSession(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, SessionLondon, london.Name)
	assert.Equal(t, 0.8, london.MultOrZero("scalp"))

	ny := m.CurrentSession(time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, SessionNewYork, ny.Name)
	assert.Equal(t, 1.0, ny.MultOrZero("trend"))

	// 边界：8点整属于 LONDON，16点整属于 NY
	assert.Equal(t, SessionLondon, m.CurrentSession(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)).Name)
	assert.Equal(t, SessionNewYork, m.CurrentSession(time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)).Name)
}

func TestSessionPolicyMultOrZero(t *testing.T) {
	policy := SessionPolicy{Name: "X", SizeMult: map[string]float64{"trend": 0.5}}

	assert.Equal(t, 0.5, policy.MultOrZero("trend"))
	assert.Equal(t, 0.0, policy.MultOrZero("unknown"), "未配置的策略按 0 处理")
}

func TestIsWithinWindow(t *testing.T) {
	m := NewSessionManager()

	// tz=+1 时窗口 [01:00, 15:30) 对应 UTC [00:00, 14:30)
	inside := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.True(t, m.IsWithinWindow(inside, 1, 0, 15, 30, 1))

	edge := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	assert.True(t, m.IsWithinWindow(edge, 1, 0, 15, 30, 1), "窗口为闭区间")

	after := time.Date(2026, 3, 10, 14, 31, 0, 0, time.UTC)
	assert.False(t, m.IsWithinWindow(after, 1, 0, 15, 30, 1))

	before := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.False(t, m.IsWithinWindow(before, 1, 0, 15, 30, 1))

	// 跨午夜窗口
	assert.True(t, m.IsWithinWindow(time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), 22, 0, 2, 0, 0))
	assert.True(t, m.IsWithinWindow(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC), 22, 0, 2, 0, 0))
	assert.False(t, m.IsWithinWindow(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), 22, 0, 2, 0, 0))
}
