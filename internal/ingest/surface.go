package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"procodus.dev/thermobot/internal/view"
)

// TelegramSurface adapts the Bot API client to the reconciler's Surface.
// For private chats the chat identity equals the user identity, which is
// what lets Send work for users with no stored view yet.
type TelegramSurface struct {
	bot *bot.Bot
}

var _ view.Surface = (*TelegramSurface)(nil)

// NewTelegramSurface creates a new TelegramSurface.
func NewTelegramSurface(b *bot.Bot) (*TelegramSurface, error) {
	if b == nil {
		return nil, errors.New("bot cannot be nil")
	}
	return &TelegramSurface{bot: b}, nil
}

// Send implements view.Surface.
func (s *TelegramSurface) Send(ctx context.Context, userID string, c view.Content) (string, string, error) {
	msg, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      userID,
		Text:        c.Text,
		ReplyMarkup: markup(c.Keyboard),
	})
	if err != nil {
		return "", "", err
	}

	messageID := strconv.Itoa(msg.ID)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	return messageID, chatID, nil
}

// Edit implements view.Surface.
func (s *TelegramSurface) Edit(ctx context.Context, chatID, messageID string, c view.Content) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("bad message id %q: %w", messageID, err)
	}

	_, err = s.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   id,
		Text:        c.Text,
		ReplyMarkup: markup(c.Keyboard),
	})
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		// The Bot API rejects edits that would not change the message; the
		// reconciler treats that as success.
		return view.ErrNotModified
	}
	return err
}

// Delete implements view.Surface.
func (s *TelegramSurface) Delete(ctx context.Context, chatID, messageID string) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("bad message id %q: %w", messageID, err)
	}

	_, err = s.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: id,
	})
	return err
}

// markup converts a control grid to the Bot API keyboard shape.
func markup(keyboard [][]view.Button) models.ReplyMarkup {
	if len(keyboard) == 0 {
		return nil
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Label,
				CallbackData: b.Token,
			})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
