package tgops

import (
	"context"
	"strconv"
	"time"

	"github.com/gotd/td/tg"

	"telegram-accounts/internal/domain/target"
)

const (
	defaultDialogsLimit = 100
	maxDialogsLimit     = 5000
)

// Dialog — сводка одного диалога аккаунта. ID — канонический маркированный
// идентификатор: пользователи положительные, группы отрицательные, каналы
// с префиксом -100.
type Dialog struct {
	ID              int64  `json:"id"`
	Title           string `json:"title,omitempty"`
	Username        string `json:"username,omitempty"`
	IsGroup         bool   `json:"is_group"`
	IsChannel       bool   `json:"is_channel"`
	IsUser          bool   `json:"is_user"`
	UnreadCount     int    `json:"unread_count"`
	LastMessageDate string `json:"last_message_date,omitempty"`
}

// Dialogs возвращает последние limit диалогов аккаунта. limit ограничен
// сверху maxDialogsLimit, неположительные значения заменяются умолчанием.
func (s *Service) Dialogs(ctx context.Context, account string, limit int) ([]Dialog, error) {
	if limit <= 0 {
		limit = defaultDialogsLimit
	}
	if limit > maxDialogsLimit {
		limit = maxDialogsLimit
	}

	conn, err := s.conn(ctx, account)
	if err != nil {
		return nil, err
	}
	batch, err := conn.Peers().FetchDialogs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return buildDialogs(batch, limit), nil
}

// buildDialogs сводит сырую выдачу messages.getDialogs в плоский список.
// Чистая функция, сетевых вызовов не делает.
func buildDialogs(batch *tg.MessagesDialogs, limit int) []Dialog {
	users := make(map[int64]*tg.User, len(batch.Users))
	for _, entity := range batch.Users {
		if user, ok := entity.(*tg.User); ok {
			users[user.ID] = user
		}
	}
	chats := make(map[int64]*tg.Chat, len(batch.Chats))
	channels := make(map[int64]*tg.Channel, len(batch.Chats))
	for _, entity := range batch.Chats {
		switch item := entity.(type) {
		case *tg.Chat:
			chats[item.ID] = item
		case *tg.Channel:
			channels[item.ID] = item
		}
	}
	dates := topMessageDates(batch.Messages)

	result := make([]Dialog, 0, len(batch.Dialogs))
	for _, entry := range batch.Dialogs {
		dlg, ok := entry.(*tg.Dialog)
		if !ok {
			continue
		}

		var summary Dialog
		switch peer := dlg.Peer.(type) {
		case *tg.PeerUser:
			user, known := users[peer.UserID]
			if !known {
				continue
			}
			summary = Dialog{
				ID:       user.ID,
				Title:    userTitle(user),
				Username: user.Username,
				IsUser:   true,
			}
		case *tg.PeerChat:
			chat, known := chats[peer.ChatID]
			if !known {
				continue
			}
			summary = Dialog{
				ID:      target.MarkChat(chat.ID),
				Title:   chat.Title,
				IsGroup: true,
			}
		case *tg.PeerChannel:
			channel, known := channels[peer.ChannelID]
			if !known {
				continue
			}
			summary = Dialog{
				ID:        target.MarkChannel(channel.ID),
				Title:     channel.Title,
				Username:  channel.Username,
				IsGroup:   channel.Megagroup,
				IsChannel: channel.Broadcast,
			}
		default:
			continue
		}

		summary.UnreadCount = dlg.UnreadCount
		if date, found := dates[messageKey{peer: peerMapKey(dlg.Peer), id: dlg.TopMessage}]; found {
			summary.LastMessageDate = time.Unix(int64(date), 0).UTC().Format(time.RFC3339)
		}

		result = append(result, summary)
		if len(result) == limit {
			break
		}
	}
	return result
}

type messageKey struct {
	peer string
	id   int
}

// topMessageDates индексирует даты сообщений по (peer, id): id сообщений
// в каналах нумеруются независимо, одного id недостаточно.
func topMessageDates(messages []tg.MessageClass) map[messageKey]int {
	dates := make(map[messageKey]int, len(messages))
	for _, msg := range messages {
		switch item := msg.(type) {
		case *tg.Message:
			dates[messageKey{peer: peerMapKey(item.PeerID), id: item.ID}] = item.Date
		case *tg.MessageService:
			dates[messageKey{peer: peerMapKey(item.PeerID), id: item.ID}] = item.Date
		}
	}
	return dates
}

func peerMapKey(peer tg.PeerClass) string {
	switch entity := peer.(type) {
	case *tg.PeerUser:
		return "u" + itoa(entity.UserID)
	case *tg.PeerChat:
		return "c" + itoa(entity.ChatID)
	case *tg.PeerChannel:
		return "ch" + itoa(entity.ChannelID)
	default:
		return ""
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func userTitle(user *tg.User) string {
	switch {
	case user.FirstName != "" && user.LastName != "":
		return user.FirstName + " " + user.LastName
	case user.FirstName != "":
		return user.FirstName
	case user.LastName != "":
		return user.LastName
	default:
		return user.Username
	}
}
