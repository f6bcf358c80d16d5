package source

import (
	"context"
	"fmt"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// MemorySource реализует интерфейс ChatSource поверх данных в памяти.
// Используется в тестах сценария экспорта и при отладке без доступа к сервису.
type MemorySource struct {
	Identity domain.Identity
	Chats    []domain.Chat
	// Messages хранит сообщения по идентификатору чата.
	Messages map[string][]domain.Message

	// MeErr и ChatsErr позволяют имитировать отказ соответствующего запроса.
	MeErr    error
	ChatsErr error
	// MessagesErr имитирует обрыв выгрузки чата: сообщения из Messages
	// возвращаются вместе с ошибкой как частичный результат.
	MessagesErr map[string]error
}

var _ ports.ChatSource = (*MemorySource)(nil)

// Me возвращает заданную личность пользователя.
func (s *MemorySource) Me(ctx context.Context) (domain.Identity, error) {
	if s.MeErr != nil {
		return domain.Identity{}, s.MeErr
	}
	return s.Identity, nil
}

// ListChats возвращает копию списка чатов.
func (s *MemorySource) ListChats(ctx context.Context) ([]domain.Chat, error) {
	if s.ChatsErr != nil {
		return nil, s.ChatsErr
	}

	// Возвращаем копию, чтобы вызывающая сторона не меняла исходные данные.
	chats := make([]domain.Chat, len(s.Chats))
	copy(chats, s.Chats)

	return chats, nil
}

// ListMessages возвращает копию сообщений чата. Для чата с заданной в
// MessagesErr ошибкой сообщения возвращаются вместе с ней как частичный
// результат.
func (s *MemorySource) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	msgs, ok := s.Messages[chatID]
	if !ok && s.MessagesErr[chatID] == nil {
		return nil, fmt.Errorf("чат %s не найден", chatID)
	}

	out := make([]domain.Message, len(msgs))
	copy(out, msgs)

	if err := s.MessagesErr[chatID]; err != nil {
		return out, err
	}

	return out, nil
}
