package publisher

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrStaleHandle means the tracked message is gone or can no longer be edited.
var ErrStaleHandle = errors.New("tracked message no longer exists")

// ErrNeedsRepublish means the sample cannot be shown by editing the message in place: a
// photo message cannot drop its photo. The caller publishes a replacement and retracts h.
var ErrNeedsRepublish = errors.New("tracked message cannot show the sample in place")

// ChannelError is a rejected channel mutation. It is transient from the tracker's point of
// view: the handle is kept and the next tick retries.
type ChannelError struct {
	Op   string
	Code int
	Err  error
}

func (e *ChannelError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telegram %s failed (%d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("telegram %s failed: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Telegram descriptions meaning the message behind a handle is unusable.
var stalePhrases = []string{
	"message to edit not found",
	"message to delete not found",
	"message can't be edited",
	"message_id_invalid",
	"there is no caption in the message to edit",
	"there is no text in the message to edit",
	"there is no media in the message to edit",
}

const notModified = "message is not modified"

// classify maps a Bot API error onto nil (edit was a no-op), ErrStaleHandle, or *ChannelError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	code := 0
	desc := err.Error()
	var pe *tgbotapi.Error
	var ve tgbotapi.Error
	switch {
	case errors.As(err, &pe):
		code, desc = pe.Code, pe.Message
	case errors.As(err, &ve):
		code, desc = ve.Code, ve.Message
	}
	lower := strings.ToLower(desc)
	if strings.Contains(lower, notModified) {
		return nil
	}
	for _, p := range stalePhrases {
		if strings.Contains(lower, p) {
			return fmt.Errorf("%s: %w", op, ErrStaleHandle)
		}
	}
	return &ChannelError{Op: op, Code: code, Err: err}
}
