package region

import (
	"context"
	"log/slog"
	"time"

	"github.com/ixugo/goddd/pkg/conc"
)

// Sessions 每个片段同一时间只有一个编辑会话
type Sessions struct {
	m   conc.Map[int64, *Session]
	ttl time.Duration
}

// NewSessions ttl 为会话空闲多久后被回收，<=0 表示不回收
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl}
}

// Open 创建会话，已有会话会被丢弃
func (s *Sessions) Open(segmentID int64, w, h, regionCount int) (*Session, error) {
	sess, err := NewSession(segmentID, w, h, regionCount)
	if err != nil {
		return nil, err
	}
	// 并发打开时每个旧会话恰好被一个调用方换出并丢弃
	if old, ok := s.m.Swap(segmentID, sess); ok && old != nil {
		old.DiscardPending()
		slog.Info("editing session replaced", "segment_id", segmentID, "old", old.ID, "new", sess.ID)
	}
	return sess, nil
}

// Get 片段当前的会话
func (s *Sessions) Get(segmentID int64) (*Session, bool) {
	return s.m.Load(segmentID)
}

// Close 丢弃未保存的修改并移除会话
func (s *Sessions) Close(segmentID int64) bool {
	sess, ok := s.m.LoadAndDelete(segmentID)
	if !ok {
		return false
	}
	sess.DiscardPending()
	return true
}

// Len 当前会话数量
func (s *Sessions) Len() int {
	return s.m.Len()
}

// Evict 回收空闲超过 ttl 的会话，返回回收数量
func (s *Sessions) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	var n int
	s.m.Range(func(segmentID int64, sess *Session) bool {
		sess.mu.Lock()
		idle := now.Sub(sess.touchedAt)
		sess.mu.Unlock()
		if idle <= s.ttl {
			return true
		}
		// 期间可能已被新会话替换
		if s.m.CompareAndDelete(segmentID, sess) {
			sess.DiscardPending()
			n++
		}
		return true
	})
	return n
}

// StartEvictWorker 定期回收空闲会话，ctx 结束时退出
func (s *Sessions) StartEvictWorker(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	conc.Timer(ctx, interval, interval, func() {
		if n := s.Evict(time.Now()); n > 0 {
			slog.Info("editing sessions evicted", "count", n)
		}
	})
}
