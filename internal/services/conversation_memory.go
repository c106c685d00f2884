package services

import (
	"sync"
)

// DefaultHistorySize 默认保留的对话轮数
const DefaultHistorySize = 5

// Turn 一轮问答
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ConversationMemory 有界对话记忆，固定容量环形缓冲。
// 超出容量时FIFO淘汰最旧的轮次。单会话独占，不跨会话共享。
type ConversationMemory struct {
	mu       sync.Mutex
	turns    []Turn
	head     int
	size     int
	capacity int
}

// NewConversationMemory 创建对话记忆，capacity<=0时使用默认值
func NewConversationMemory(capacity int) *ConversationMemory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &ConversationMemory{
		turns:    make([]Turn, capacity),
		capacity: capacity,
	}
}

// Append 追加一轮问答，满时覆盖最旧轮次，O(1)
func (m *ConversationMemory) Append(turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tail := (m.head + m.size) % m.capacity
	m.turns[tail] = turn
	if m.size < m.capacity {
		m.size++
	} else {
		m.head = (m.head + 1) % m.capacity
	}
}

// Clear 清空全部轮次
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = 0
	m.size = 0
}

// Len 当前轮数
func (m *ConversationMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Snapshot 按时间顺序返回轮次的只读副本
func (m *ConversationMemory) Snapshot() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Turn, 0, m.size)
	for i := 0; i < m.size; i++ {
		out = append(out, m.turns[(m.head+i)%m.capacity])
	}
	return out
}
