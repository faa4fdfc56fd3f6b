package trader

import "time"

// 时段名称
const (
	SessionAsia    = "ASIA"
	SessionLondon  = "LONDON"
	SessionNewYork = "NY"
)

// SessionPolicy 交易时段策略：UTC小时窗口 [StartHour, EndHour) + 各策略的仓位乘数
type SessionPolicy struct {
	Name      string
	StartHour int
	EndHour   int
	SizeMult  map[string]float64
}

// MultOrZero 返回策略的仓位乘数；未配置的策略按 0 处理（用于准入判断）
func (p SessionPolicy) MultOrZero(strategyID string) float64 {
	return p.SizeMult[strategyID]
}

// SessionManager 按UTC小时解析当前交易时段。
// 时段表固定且覆盖全天24小时，互不重叠。
type SessionManager struct {
	sessions []SessionPolicy
}

// NewSessionManager 创建时段解析器（ASIA/LONDON/NY）
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: []SessionPolicy{
			{Name: SessionAsia, StartHour: 0, EndHour: 8, SizeMult: map[string]float64{"scalp": 0.6, "trend": 0.3}},
			{Name: SessionLondon, StartHour: 8, EndHour: 16, SizeMult: map[string]float64{"scalp": 0.8, "trend": 0.6}},
			{Name: SessionNewYork, StartHour: 16, EndHour: 24, SizeMult: map[string]float64{"scalp": 1.0, "trend": 1.0}},
		},
	}
}

// CurrentSession 返回时间戳所在的时段；表覆盖全天，兜底返回最后一个
func (m *SessionManager) CurrentSession(ts time.Time) SessionPolicy {
	hour := ts.UTC().Hour()
	for _, s := range m.sessions {
		if s.StartHour <= hour && hour < s.EndHour {
			return s
		}
	}
	return m.sessions[len(m.sessions)-1]
}

// IsWithinWindow 判断时间戳（换算到固定UTC偏移时区后）是否落在一天内的
// [start, end] 窗口里；end <= start 视为跨午夜窗口。
func (m *SessionManager) IsWithinWindow(ts time.Time, startHour, startMinute, endHour, endMinute, tzOffsetHours int) bool {
	local := ts.In(time.FixedZone("", tzOffsetHours*3600))
	minutes := local.Hour()*60 + local.Minute()
	start := startHour*60 + startMinute
	end := endHour*60 + endMinute

	if end <= start {
		return minutes >= start || minutes <= end
	}
	return start <= minutes && minutes <= end
}
