package repo

import (
	"context"
	"sync"
)

// broker はプロセス内でルームの変更通知を配信します（memory / sqlite 用）
// 通知は合体されるため、書き込み側がブロックすることはありません
type broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *broker) subscribe(ctx context.Context, roomId string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	set, ok := b.subs[roomId]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[roomId] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[roomId], ch)
		if len(b.subs[roomId]) == 0 {
			delete(b.subs, roomId)
		}
		close(ch)
	}()
	return ch
}

func (b *broker) publish(roomId string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[roomId] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
