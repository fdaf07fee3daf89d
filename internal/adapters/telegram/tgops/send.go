package tgops

import (
	"context"
	"math/rand/v2"

	"github.com/gotd/td/tg"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/domain/target"
)

// SendMessage отправляет текстовое сообщение цели ref от имени аккаунта.
// Пустая цель и пустой текст отклоняются до обращения к реестру.
func (s *Service) SendMessage(ctx context.Context, account string, ref target.Ref, text string) error {
	if ref.IsZero() {
		return errs.E(errs.KindMissingTarget, "chat_id is required")
	}
	if text == "" {
		return errs.E(errs.KindInvalidArgument, "message text is required")
	}

	conn, err := s.conn(ctx, account)
	if err != nil {
		return err
	}
	peer, err := s.resolve(ctx, conn, ref)
	if err != nil {
		return err
	}

	if _, err = conn.API().MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: rand.Int64(),
	}); err != nil {
		return errs.FromTelegram(err)
	}
	return nil
}
