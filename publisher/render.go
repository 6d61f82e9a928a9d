package publisher

import (
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/onnwee/nowplaying/tracksource"
)

// PausedText is shown while nothing is playing.
const PausedText = "⏸ Пауза"

const buttonsPerRow = 2

// Caption is the message text for a playing track.
func Caption(s tracksource.Sample) string {
	return fmt.Sprintf("🎶 Сейчас играет: %s — %s", s.DisplayTitle(), s.ArtistLine())
}

// Keyboard lays links out as URL buttons, two per row. Returns nil when there are no links.
func Keyboard(links []tracksource.Link) *tgbotapi.InlineKeyboardMarkup {
	if len(links) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(links); i += buttonsPerRow {
		end := i + buttonsPerRow
		if end > len(links) {
			end = len(links)
		}
		var row []tgbotapi.InlineKeyboardButton
		for _, l := range links[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(l.Service, l.URL))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// textBody renders a text-only message. With artwork the cover is attached as a hidden
// link so the client shows it as the preview.
func textBody(s tracksource.Sample) (text, parseMode string, disablePreview bool) {
	if s.ArtworkURL == "" {
		return Caption(s), "", true
	}
	return fmt.Sprintf(`<a href="%s">&#8205;</a>%s`, html.EscapeString(s.ArtworkURL), html.EscapeString(Caption(s))), tgbotapi.ModeHTML, false
}
