package tgops

import (
	"context"

	"github.com/gotd/td/tg"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/domain/target"
)

const participantsPageLimit = 200

// Member — участник группы или канала.
type Member struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	IsBot        bool   `json:"is_bot"`
	IsAdmin      bool   `json:"is_admin"`
	IsContact    bool   `json:"is_contact"`
	IsVerified   bool   `json:"is_verified"`
	IsRestricted bool   `json:"is_restricted"`
}

// ExportMembers выгружает участников цели ref окном [offset, offset+limit).
// limit <= 0 означает «все начиная с offset». Цель-пользователь — ошибка
// KindPeerNotFound: участников можно выгрузить только у группы или канала.
func (s *Service) ExportMembers(ctx context.Context, account string, ref target.Ref, offset, limit int) ([]Member, error) {
	if offset < 0 {
		offset = 0
	}

	conn, err := s.conn(ctx, account)
	if err != nil {
		return nil, err
	}

	peer, err := s.resolve(ctx, conn, ref)
	if err != nil {
		return nil, err
	}

	switch input := peer.(type) {
	case *tg.InputPeerChannel:
		return channelMembers(ctx, conn.API(), input, offset, limit)
	case *tg.InputPeerChat:
		return chatMembers(ctx, conn.API(), input.ChatID, offset, limit)
	default:
		return nil, errs.Errorf(errs.KindPeerNotFound, "target %s is not a group or channel", ref)
	}
}

// resolve превращает цель в InputPeer через кэш пиров аккаунта.
func (s *Service) resolve(ctx context.Context, conn Conn, ref target.Ref) (tg.InputPeerClass, error) {
	if ref.IsZero() {
		return nil, errs.E(errs.KindMissingTarget, "target is required")
	}
	if ref.Username != "" {
		return conn.Peers().ResolveUsername(ctx, ref.Username)
	}
	return conn.Peers().ResolveID(ctx, ref.ID)
}

// channelMembers постранично выгружает участников канала или супергруппы.
// Окно накладывается серверным offset: страницы до offset не запрашиваются.
func channelMembers(ctx context.Context, api *tg.Client, peer *tg.InputPeerChannel, offset, limit int) ([]Member, error) {
	channel := &tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash}

	var members []Member
	serverOffset := offset
	for {
		pageLimit := participantsPageLimit
		if limit > 0 {
			remaining := limit - len(members)
			if remaining <= 0 {
				break
			}
			if remaining < pageLimit {
				pageLimit = remaining
			}
		}

		resp, err := api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: channel,
			Filter:  &tg.ChannelParticipantsRecent{},
			Offset:  serverOffset,
			Limit:   pageLimit,
		})
		if err != nil {
			return nil, errs.FromTelegram(err)
		}
		page, ok := resp.(*tg.ChannelsChannelParticipants)
		if !ok {
			// channels.channelParticipantsNotModified: выдача не менялась.
			break
		}
		if len(page.Participants) == 0 {
			break
		}

		users := userIndex(page.Users)
		for _, participant := range page.Participants {
			userID, isAdmin, known := channelParticipantUser(participant)
			if !known {
				continue
			}
			user, found := users[userID]
			if !found {
				continue
			}
			members = append(members, memberFromUser(user, isAdmin))
		}

		serverOffset += len(page.Participants)
		if len(page.Participants) < pageLimit {
			break
		}
	}

	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

// chatMembers выгружает участников обычной (не мигрировавшей) группы.
// Список приходит целиком из messages.getFullChat, окно накладывается локально.
func chatMembers(ctx context.Context, api *tg.Client, chatID int64, offset, limit int) ([]Member, error) {
	full, err := api.MessagesGetFullChat(ctx, chatID)
	if err != nil {
		return nil, errs.FromTelegram(err)
	}

	chatFull, ok := full.FullChat.(*tg.ChatFull)
	if !ok {
		return nil, errs.Errorf(errs.KindPeerNotFound, "chat %d has no participant list", chatID)
	}
	participants, ok := chatFull.Participants.(*tg.ChatParticipants)
	if !ok {
		// chatParticipantsForbidden: состав скрыт от текущего аккаунта.
		return nil, errs.Errorf(errs.KindPrivacy, "participants of chat %d are not available", chatID)
	}

	users := userIndex(full.Users)
	members := make([]Member, 0, len(participants.Participants))
	for _, participant := range participants.Participants {
		userID, isAdmin, known := chatParticipantUser(participant)
		if !known {
			continue
		}
		user, found := users[userID]
		if !found {
			continue
		}
		members = append(members, memberFromUser(user, isAdmin))
	}

	return window(members, offset, limit), nil
}

// window возвращает срез [offset, offset+limit) поверх members.
// limit <= 0 означает «до конца».
func window(members []Member, offset, limit int) []Member {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(members) {
		return []Member{}
	}
	members = members[offset:]
	if limit > 0 && limit < len(members) {
		members = members[:limit]
	}
	return members
}

func userIndex(entities []tg.UserClass) map[int64]*tg.User {
	users := make(map[int64]*tg.User, len(entities))
	for _, entity := range entities {
		if user, ok := entity.(*tg.User); ok {
			users[user.ID] = user
		}
	}
	return users
}

// channelParticipantUser извлекает id пользователя и признак администратора
// из участника канала. Левые и забаненные записи пропускаются.
func channelParticipantUser(participant tg.ChannelParticipantClass) (userID int64, isAdmin, ok bool) {
	switch item := participant.(type) {
	case *tg.ChannelParticipant:
		return item.UserID, false, true
	case *tg.ChannelParticipantSelf:
		return item.UserID, false, true
	case *tg.ChannelParticipantCreator:
		return item.UserID, true, true
	case *tg.ChannelParticipantAdmin:
		return item.UserID, true, true
	default:
		return 0, false, false
	}
}

func chatParticipantUser(participant tg.ChatParticipantClass) (userID int64, isAdmin, ok bool) {
	switch item := participant.(type) {
	case *tg.ChatParticipant:
		return item.UserID, false, true
	case *tg.ChatParticipantCreator:
		return item.UserID, true, true
	case *tg.ChatParticipantAdmin:
		return item.UserID, true, true
	default:
		return 0, false, false
	}
}

func memberFromUser(user *tg.User, isAdmin bool) Member {
	return Member{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		IsBot:        user.Bot,
		IsAdmin:      isAdmin,
		IsContact:    user.Contact,
		IsVerified:   user.Verified,
		IsRestricted: user.Restricted,
	}
}
