package repo

import (
	"context"
	"sync"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
)

type memoryRoom struct {
	room      models.Room
	order     []string
	questions map[string]models.Question
}

// MemoryRoomRepo はプロセス内のマップで動く RoomRepo の実装です
type MemoryRoomRepo struct {
	mu     sync.RWMutex
	rooms  map[string]*memoryRoom
	events *broker
}

func NewMemoryRoomRepo() *MemoryRoomRepo {
	return &MemoryRoomRepo{rooms: make(map[string]*memoryRoom), events: newBroker()}
}

func (m *MemoryRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	m.mu.Lock()
	if _, ok := m.rooms[room.ID]; ok {
		m.mu.Unlock()
		return ErrRecordExists
	}
	m.rooms[room.ID] = &memoryRoom{room: room, questions: make(map[string]models.Question)}
	m.mu.Unlock()

	m.events.publish(room.ID)
	return nil
}

func (m *MemoryRoomRepo) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomId]
	if !ok {
		return models.Room{}, false, nil
	}
	return r.room, true, nil
}

func (m *MemoryRoomRepo) ExistsRoom(ctx context.Context, roomId string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomId]
	return ok, nil
}

func (m *MemoryRoomRepo) UpdateRoom(ctx context.Context, roomId string, fields Fields) error {
	if err := checkFields(fields, roomMutableFields); err != nil {
		return err
	}
	m.mu.Lock()
	r, ok := m.rooms[roomId]
	if !ok {
		m.mu.Unlock()
		return ErrRecordNotFound
	}
	room := r.room
	if err := applyRoomFields(&room, fields); err != nil {
		m.mu.Unlock()
		return err
	}
	r.room = room
	m.mu.Unlock()

	m.events.publish(roomId)
	return nil
}

func (m *MemoryRoomRepo) AddQuestion(ctx context.Context, roomId string, q models.Question) error {
	m.mu.Lock()
	r, ok := m.rooms[roomId]
	if !ok {
		m.mu.Unlock()
		return ErrRecordNotFound
	}
	if _, exists := r.questions[q.ID]; exists {
		m.mu.Unlock()
		return ErrRecordExists
	}
	r.questions[q.ID] = q
	r.order = append(r.order, q.ID)
	m.mu.Unlock()

	m.events.publish(roomId)
	return nil
}

func (m *MemoryRoomRepo) GetQuestion(ctx context.Context, roomId, questionId string) (models.Question, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomId]
	if !ok {
		return models.Question{}, false, nil
	}
	q, ok := r.questions[questionId]
	return q, ok, nil
}

func (m *MemoryRoomRepo) UpdateQuestion(ctx context.Context, roomId, questionId string, fields Fields) error {
	if err := checkFields(fields, questionMutableFields); err != nil {
		return err
	}
	m.mu.Lock()
	r, ok := m.rooms[roomId]
	if !ok {
		m.mu.Unlock()
		return ErrRecordNotFound
	}
	q, ok := r.questions[questionId]
	if !ok {
		m.mu.Unlock()
		return ErrRecordNotFound
	}
	if err := applyQuestionFields(&q, fields); err != nil {
		m.mu.Unlock()
		return err
	}
	r.questions[questionId] = q
	m.mu.Unlock()

	m.events.publish(roomId)
	return nil
}

func (m *MemoryRoomRepo) RemoveQuestion(ctx context.Context, roomId, questionId string) error {
	m.mu.Lock()
	r, ok := m.rooms[roomId]
	if !ok {
		m.mu.Unlock()
		return ErrRecordNotFound
	}
	if _, ok := r.questions[questionId]; !ok {
		m.mu.Unlock()
		return ErrRecordNotFound
	}
	delete(r.questions, questionId)
	order := r.order[:0]
	for _, id := range r.order {
		if id != questionId {
			order = append(order, id)
		}
	}
	r.order = order
	m.mu.Unlock()

	m.events.publish(roomId)
	return nil
}

func (m *MemoryRoomRepo) ListQuestions(ctx context.Context, roomId string) ([]models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomId]
	if !ok {
		return []models.Question{}, nil
	}
	res := make([]models.Question, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.questions[id])
	}
	return res, nil
}

func (m *MemoryRoomRepo) Subscribe(ctx context.Context, roomId string) (<-chan struct{}, error) {
	return m.events.subscribe(ctx, roomId), nil
}
