package channel

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestNewTelegram_ParsesAllowList(t *testing.T) {
	tg := NewTelegram(TelegramConfig{
		Token:     "x",
		AllowFrom: []string{"123", " 456 ", "not-a-number"},
		Logger:    testLogger(),
	})
	if len(tg.allowFrom) != 2 {
		t.Fatalf("allowFrom = %v", tg.allowFrom)
	}
	if !tg.isAllowed(123) || !tg.isAllowed(456) {
		t.Fatal("listed users must be allowed")
	}
	if tg.isAllowed(789) {
		t.Fatal("unlisted user must be rejected")
	}
}

func TestIsAllowed_EmptyListAllowsAll(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Token: "x", Logger: testLogger()})
	if !tg.isAllowed(42) {
		t.Fatal("empty allow list should allow everyone")
	}
}

func TestExtractMedia_Photo(t *testing.T) {
	msg := &tgbotapi.Message{
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}
	media, mediaType := extractMedia(msg)
	if len(media) != 1 || media[0] != "large" {
		t.Fatalf("expected largest photo, got %v", media)
	}
	if mediaType != "photo" {
		t.Fatalf("mediaType = %q", mediaType)
	}
}

func TestExtractMedia_Document(t *testing.T) {
	msg := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "doc-1"},
	}
	media, mediaType := extractMedia(msg)
	if len(media) != 1 || media[0] != "doc-1" || mediaType != "document" {
		t.Fatalf("media=%v type=%q", media, mediaType)
	}
}

func TestExtractMedia_None(t *testing.T) {
	media, mediaType := extractMedia(&tgbotapi.Message{})
	if len(media) != 0 || mediaType != "" {
		t.Fatalf("expected no media, got %v %q", media, mediaType)
	}
}
