package graph

import (
	"sync"
	"time"

	"teams-chat-exporter/internal/domain"
)

// Session хранит текущий токен доступа и личность пользователя на время
// одного запуска. Состояние защищено мьютексом и обновляется на месте:
// все запросы читают токен через Session непосредственно перед отправкой,
// поэтому обновление после повторного входа видно им сразу.
type Session struct {
	mu       sync.RWMutex
	token    domain.Token
	identity domain.Identity
}

// NewSession создаёт пустую сессию. Токен появляется после первого Update.
func NewSession() *Session {
	return &Session{}
}

// Update заменяет токен сессии.
func (s *Session) Update(tok domain.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
}

// AccessToken возвращает текущий токен доступа.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken
}

// ExpiresOn возвращает время истечения текущего токена.
func (s *Session) ExpiresOn() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.ExpiresOn
}

// SetIdentity сохраняет личность аутентифицированного пользователя.
func (s *Session) SetIdentity(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

// Identity возвращает сохранённую личность пользователя.
func (s *Session) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}
