package push

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	domainchat "toytrade/internal/domain/chat"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", preview(&domainchat.Message{Type: domainchat.MessageText, Content: "hello"}))

	long := strings.Repeat("x", 300)
	assert.Equal(t, long[:120], preview(&domainchat.Message{Type: domainchat.MessageText, Content: long}))

	// Media messages never leak the URL onto a lock screen.
	assert.Equal(t, "[photo]", preview(&domainchat.Message{Type: domainchat.MessageImage, MediaURL: "https://cdn/x.png"}))
	assert.Equal(t, "[file]", preview(&domainchat.Message{Type: domainchat.MessageFile, MediaURL: "https://cdn/x.pdf"}))
}
