package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"teams-chat-exporter/internal/domain"
)

// page представляет одну страницу листинга со ссылкой на продолжение.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink,omitempty"`
}

// Pager последовательно обходит страницы листинга, следуя ссылкам
// продолжения, пока сервис их возвращает. Последовательность конечна и не
// перезапускается: после последней страницы Next всегда возвращает false.
// Перед каждым запросом, кроме самого первого, выдерживается пауза,
// ограничивающая частоту обращений.
type Pager struct {
	client  *Client
	next    string
	started bool
	done    bool
}

// Pager создаёт обходчик страниц, начинающий с endpoint.
func (c *Client) Pager(endpoint string) *Pager {
	return &Pager{client: c, next: endpoint}
}

// Next загружает очередную страницу и возвращает её элементы.
// Второе значение равно false, когда страницы закончились.
func (p *Pager) Next(ctx context.Context) ([]json.RawMessage, bool, error) {
	if p.done || p.next == "" {
		return nil, false, nil
	}
	if p.started {
		p.client.sleep(p.client.pageDelay)
	}
	p.started = true

	var pg page
	if err := p.client.GetJSON(ctx, p.next, &pg); err != nil {
		p.done = true
		return nil, false, err
	}

	p.next = pg.NextLink
	if p.next == "" {
		p.done = true
	}
	return pg.Value, true, nil
}

// ListChats возвращает все приватные чаты пользователя вместе с участниками.
func (c *Client) ListChats(ctx context.Context) ([]domain.Chat, error) {
	q := url.Values{}
	q.Set("$expand", "members")
	q.Set("$top", strconv.Itoa(c.pageSize))
	endpoint := c.baseURL + "/me/chats?" + q.Encode()

	var chats []domain.Chat
	p := c.Pager(endpoint)
	for {
		items, ok, err := p.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list chats: %w", err)
		}
		if !ok {
			break
		}
		for _, raw := range items {
			var ch domain.Chat
			if err := json.Unmarshal(raw, &ch); err != nil {
				return nil, fmt.Errorf("failed to decode chat record: %w", err)
			}
			chats = append(chats, ch)
		}
	}

	c.log.InfoContext(ctx, "Получен список чатов", "count", len(chats))
	return chats, nil
}

// ListMessages возвращает сообщения чата в том порядке, в котором их отдаёт
// сервис (от новых к старым). Если обход оборвался на середине, уже
// накопленные сообщения возвращаются вместе с ошибкой: вызывающая сторона
// решает, сохранять ли частичный результат.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(c.pageSize))
	q.Set("$orderby", "createdDateTime desc")
	endpoint := fmt.Sprintf("%s/me/chats/%s/messages?%s", c.baseURL, url.PathEscape(chatID), q.Encode())

	var msgs []domain.Message
	p := c.Pager(endpoint)
	for {
		items, ok, err := p.Next(ctx)
		if err != nil {
			return msgs, fmt.Errorf("failed to list messages of chat %s: %w", chatID, err)
		}
		if !ok {
			break
		}
		for _, raw := range items {
			var m domain.Message
			if err := json.Unmarshal(raw, &m); err != nil {
				return msgs, fmt.Errorf("failed to decode message record: %w", err)
			}
			msgs = append(msgs, m)
		}
	}

	c.log.DebugContext(ctx, "Получены сообщения чата", "chat_id", chatID, "count", len(msgs))
	return msgs, nil
}
