package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"toytrade/internal/backplane"
	domainchat "toytrade/internal/domain/chat"
)

// Notifier is the out-of-band hook fired when a message lands for a user with
// no live connection. Strictly best-effort: failures are logged and never
// reach the sender.
type Notifier interface {
	NotifyOffline(ctx context.Context, userID string, msg *domainchat.Message) error
}

// SendCommand carries one inbound send request into the engine.
type SendCommand struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           domainchat.MessageType
	MediaURL       string
}

// Dispatcher validates, persists and broadcasts messages. Persistence is the
// durability and ordering boundary: nothing client-visible happens before the
// store accepts the write, and everything after it is best-effort.
type Dispatcher struct {
	store    Store
	bus      backplane.Bus
	presence *Presence
	notifier Notifier
	logger   *slog.Logger

	notifyTimeout time.Duration
}

func NewDispatcher(store Store, bus backplane.Bus, presence *Presence, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:         store,
		bus:           bus,
		presence:      presence,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: 5 * time.Second,
	}
}

// Send persists a message, bumps the conversation's last activity, publishes
// the persisted message on the backplane and, if the recipient is offline on
// this process, fires the push hook. A store failure aborts everything; a
// backplane failure after persistence is logged and swallowed, recipients
// catch up from history on reconnect.
func (d *Dispatcher) Send(ctx context.Context, cmd SendCommand) (*domainchat.Message, error) {
	msgType, err := domainchat.ParseMessageType(string(cmd.Type))
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(cmd.Content)
	if msgType == domainchat.MessageText && content == "" {
		return nil, domainchat.ErrEmptyContent
	}

	conv, err := d.store.ConversationByID(ctx, cmd.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(cmd.SenderID) {
		return nil, domainchat.ErrNotParticipant
	}

	msg, err := d.store.AppendMessage(ctx, conv.ID, cmd.SenderID, content, msgType, cmd.MediaURL)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	d.publish(ctx, backplane.MessageChannel, domainchat.NewMessageEvent(msg))

	recipient := conv.OtherParticipant(cmd.SenderID)
	if recipient != "" && !d.presence.Online(recipient) && d.notifier != nil {
		go d.notifyOffline(recipient, msg)
	}
	return msg, nil
}

// MarkRead transitions a message's read timestamp from absent to set and
// broadcasts a receipt. Re-marking an already-read message is a no-op, not an
// error, and produces no second broadcast.
func (d *Dispatcher) MarkRead(ctx context.Context, messageID, readerID string) (*domainchat.Message, error) {
	msg, err := d.store.MessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := d.store.ConversationByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(readerID) {
		return nil, domainchat.ErrNotParticipant
	}
	if readerID == msg.SenderID || msg.ReadAt != nil {
		return msg, nil
	}

	updated, changed, err := d.store.MarkRead(ctx, messageID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if changed {
		d.publish(ctx, backplane.ReceiptChannel, domainchat.ReceiptEvent{
			ConversationID: updated.ConversationID,
			MessageID:      updated.ID,
			ReaderID:       readerID,
			ReadAt:         updated.ReadAt,
		})
	}
	return updated, nil
}

// MarkAllRead bulk-marks every unread message from the other party and
// broadcasts a single conversation-level receipt instead of one per message.
func (d *Dispatcher) MarkAllRead(ctx context.Context, conversationID, readerID string) error {
	conv, err := d.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return domainchat.ErrNotParticipant
	}

	now := time.Now().UTC()
	count, err := d.store.MarkAllRead(ctx, conversationID, readerID, now)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	if count > 0 {
		d.publish(ctx, backplane.ReceiptChannel, domainchat.ReceiptEvent{
			ConversationID: conversationID,
			ReaderID:       readerID,
			ReadAt:         &now,
			All:            true,
		})
	}
	return nil
}

// Delete removes the conversation and its messages for both participants and
// broadcasts the removal so every process drops its local room. Only
// participants may delete; everyone else gets the same not-found as for a
// conversation that never existed.
func (d *Dispatcher) Delete(ctx context.Context, conversationID, userID string) error {
	conv, err := d.store.ConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return domainchat.ErrNotParticipant
	}
	if err := d.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	d.publish(ctx, backplane.ConversationChannel, domainchat.ConversationEvent{
		ConversationID: conversationID,
		DeletedBy:      userID,
	})
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, channel string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logWarn("event encode failed", "channel", channel, "error", err)
		return
	}
	if err := d.bus.Publish(ctx, channel, payload); err != nil {
		d.logWarn("backplane publish failed", "channel", channel, "error", err)
	}
}

func (d *Dispatcher) notifyOffline(userID string, msg *domainchat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.notifyTimeout)
	defer cancel()
	if err := d.notifier.NotifyOffline(ctx, userID, msg); err != nil {
		d.logWarn("offline notification failed", "user_id", userID, "message_id", msg.ID, "error", err)
	}
}

func (d *Dispatcher) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
