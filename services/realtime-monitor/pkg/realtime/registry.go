// services/realtime-monitor/pkg/realtime/registry.go
package realtime

import (
	"sort"
	"sync"
)

// CallbackFunc обрабатывает апдейт канала. Ошибка (как и паника) логируется
// диспетчером и не мешает остальным колбэкам.
type CallbackFunc func(Update) error

// Callback: ссылка на обработчик. Идентичность по указателю: функции в Go
// несравнимы, поэтому одна и та же *Callback, подписанная дважды, хранится один раз.
type Callback struct {
	fn CallbackFunc
}

func NewCallback(fn CallbackFunc) *Callback {
	return &Callback{fn: fn}
}

// Func адаптирует обработчик без ошибки.
func Func(fn func(Update)) *Callback {
	return NewCallback(func(u Update) error {
		fn(u)
		return nil
	})
}

type intent struct {
	seq    uint64
	pinned bool // подписка без колбэка: снимается только полным Unsubscribe
}

// Registry хранит, кто что слушает, и множество каналов, которые нужно
// восстановить после переподключения. Все операции атомарны.
type Registry struct {
	mu       sync.RWMutex
	subs     map[string][]*Callback
	intended map[string]intent
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		subs:     make(map[string][]*Callback),
		intended: make(map[string]intent),
	}
}

// Subscribe помечает канал желаемым и добавляет cb (nil означает только намерение).
// Возвращает true, если канал стал желаемым именно сейчас.
func (r *Registry) Subscribe(channel string, cb *Callback) (newlyIntended bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.intended[channel]
	if !ok {
		r.seq++
		in = intent{seq: r.seq}
		newlyIntended = true
	}
	if cb == nil {
		in.pinned = true
	} else if !containsCallback(r.subs[channel], cb) {
		r.subs[channel] = append(r.subs[channel], cb)
	}
	r.intended[channel] = in
	return newlyIntended
}

// Unsubscribe снимает cb с канала; nil снимает канал целиком.
// Возвращает true, если канал полностью освобождён (нужен unsubscribe на провод).
// Неизвестная пара: no-op.
func (r *Registry) Unsubscribe(channel string, cb *Callback) (released bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.intended[channel]
	if !ok {
		return false
	}
	if cb == nil {
		delete(r.subs, channel)
		delete(r.intended, channel)
		return true
	}

	list := r.subs[channel]
	idx := indexCallback(list, cb)
	if idx < 0 {
		return false
	}
	next := make([]*Callback, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)
	if len(next) > 0 {
		r.subs[channel] = next
		return false
	}

	delete(r.subs, channel)
	if in.pinned {
		return false
	}
	delete(r.intended, channel)
	return true
}

// CallbacksFor: копия в порядке подписки; пустой срез, если никого нет.
func (r *Registry) CallbacksFor(channel string) []*Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.subs[channel]
	if len(list) == 0 {
		return nil
	}
	out := make([]*Callback, len(list))
	copy(out, list)
	return out
}

// IntendedChannels: снимок желаемых каналов в порядке первой подписки.
func (r *Registry) IntendedChannels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.intended))
	for ch := range r.intended {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.intended[out[i]].seq < r.intended[out[j]].seq
	})
	return out
}

func (r *Registry) IsIntended(channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.intended[channel]
	return ok
}

// Len: число желаемых каналов.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intended)
}

func containsCallback(list []*Callback, cb *Callback) bool {
	return indexCallback(list, cb) >= 0
}

func indexCallback(list []*Callback, cb *Callback) int {
	for i, cur := range list {
		if cur == cb {
			return i
		}
	}
	return -1
}
