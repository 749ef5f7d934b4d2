package realtime

import "sync"

// SystemLog: ограниченный журнал системных сообщений; старые вытесняются.
type SystemLog struct {
	mu   sync.Mutex
	buf  []SystemMessage
	size int
}

func NewSystemLog(size int) *SystemLog {
	if size <= 0 {
		size = defaultSystemLogSize
	}
	return &SystemLog{size: size}
}

func (l *SystemLog) Append(m SystemMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, m)
	if over := len(l.buf) - l.size; over > 0 {
		l.buf = append(l.buf[:0:0], l.buf[over:]...)
	}
}

// Messages: копия, от старых к новым.
func (l *SystemLog) Messages() []SystemMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SystemMessage, len(l.buf))
	copy(out, l.buf)
	return out
}

func (l *SystemLog) Clear() {
	l.mu.Lock()
	l.buf = nil
	l.mu.Unlock()
}

func (l *SystemLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}
