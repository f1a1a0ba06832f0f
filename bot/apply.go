package bot

import (
	"strconv"

	"github.com/waygroup/numbot/bot/engine"
	"github.com/waygroup/numbot/bot/session"
	"github.com/waygroup/numbot/core/logger"
	tghelpers "github.com/waygroup/numbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// applyEvents plays the engine's presentation events into the chat.
// Tracked sends go out synchronously because the message ID must be
// recorded; everything else rides the async dispatcher. Retractions
// are best-effort and never fail the handler.
func applyEvents(c tele.Context, store *session.Store, userID int64, events []engine.Event) error {
	ctx := tghelpers.BuildContext(c)

	for _, ev := range events {
		switch ev.Kind {
		case engine.KindSend:
			if ev.Track {
				opts := &tele.SendOptions{ReplyMarkup: ev.Markup}
				if ev.Markdown {
					opts.ParseMode = tele.ModeMarkdown
				}
				msg, err := c.Bot().Send(c.Recipient(), ev.Text, opts)
				if err != nil {
					return err
				}
				store.SetLastMessage(userID, msg.ID)
				continue
			}
			if ev.Markdown {
				if err := tghelpers.SendMD(c, ev.Text, ev.Markup); err != nil {
					return err
				}
				continue
			}
			var err error
			if ev.Markup != nil {
				err = tghelpers.SendText(c, ev.Text, &tele.SendOptions{ReplyMarkup: ev.Markup})
			} else {
				err = tghelpers.SendText(c, ev.Text)
			}
			if err != nil {
				return err
			}

		case engine.KindRetractSource:
			if c.Message() == nil {
				continue
			}
			if err := c.Delete(); err != nil {
				logger.Debug(ctx, "tg", "retract.source_failed",
					slog.String("err", err.Error()),
				)
			}

		case engine.KindRetractTracked:
			msgID := store.TakeLastMessage(userID)
			if msgID == 0 || c.Chat() == nil {
				continue
			}
			stored := tele.StoredMessage{
				MessageID: strconv.Itoa(msgID),
				ChatID:    c.Chat().ID,
			}
			if err := c.Bot().Delete(stored); err != nil {
				logger.Debug(ctx, "tg", "retract.tracked_failed",
					slog.Int("message_id", msgID),
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return nil
}
