package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/beeep"

	"lfp_bot/internal/model"
)

// Desktop plays a beep and raises a desktop notification.
type Desktop struct {
	beep   func() error
	notify func(title, message string) error
}

// NewDesktop creates a Desktop sink using the system speaker and notifier.
func NewDesktop() *Desktop {
	return &Desktop{
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Name implements Sink.
func (d *Desktop) Name() string { return "desktop" }

// Alert implements Sink. The notification is attempted even if the beep fails.
func (d *Desktop) Alert(_ context.Context, records []model.Record) error {
	beepErr := d.beep()
	notifyErr := d.notify("Looking for party", Summary(records, 5))
	if beepErr != nil {
		return fmt.Errorf("beep: %w", beepErr)
	}
	if notifyErr != nil {
		return fmt.Errorf("notify: %w", notifyErr)
	}
	return nil
}

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Telegram posts one message per alert to each configured chat.
type Telegram struct {
	sender  Sender
	chatIDs []int64
}

// NewTelegram creates a sink that notifies chatIDs through sender.
func NewTelegram(sender Sender, chatIDs []int64) *Telegram {
	return &Telegram{sender: sender, chatIDs: chatIDs}
}

// Name implements Sink.
func (t *Telegram) Name() string { return "telegram" }

// Alert implements Sink.
func (t *Telegram) Alert(_ context.Context, records []model.Record) error {
	text := fmt.Sprintf("%d new looking for party:\n%s", len(records), Summary(records, 10))
	for _, id := range t.chatIDs {
		t.sender.SendMessage(id, text)
	}
	return nil
}

// Summary renders up to limit records as "Name WHM50/BLM25" lines.
func Summary(records []model.Record, limit int) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		if i == limit {
			fmt.Fprintf(&b, "...and %d more", len(records)-limit)
			break
		}
		fmt.Fprintf(&b, "%s %s%d/%s%d", r.Name, r.MainJob, r.MainLevel, r.SubJob, r.SubLevel)
	}
	return b.String()
}
