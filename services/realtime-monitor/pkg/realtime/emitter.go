package realtime

import (
	"encoding/json"
	"sync"
)

// Emitter: реестр обработчиков именованных событий. Годится как основа
// для реализаций Transport: On/off отсюда, Emit вызывается из reader-цикла.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]*listener
}

type listener struct {
	h EventHandler
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]*listener)}
}

// On добавляет обработчик. off идемпотентна.
func (e *Emitter) On(event string, h EventHandler) (off func()) {
	l := &listener{h: h}
	e.mu.Lock()
	e.handlers[event] = append(e.handlers[event], l)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(event, l) })
	}
}

func (e *Emitter) remove(event string, l *listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.handlers[event]
	for i, cur := range list {
		if cur == l {
			// копия, чтобы не портить срез, который сейчас итерирует Emit
			next := make([]*listener, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(e.handlers, event)
			} else {
				e.handlers[event] = next
			}
			return
		}
	}
}

// Emit синхронно вызывает обработчики event в порядке регистрации.
// Блокировка не удерживается во время вызова: обработчик может звать On/off.
func (e *Emitter) Emit(event string, payload json.RawMessage) {
	e.mu.RLock()
	list := e.handlers[event]
	e.mu.RUnlock()
	for _, l := range list {
		l.h(payload)
	}
}

// ListenerCount: число обработчиков события.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[event])
}
