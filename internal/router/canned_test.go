package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCannedResponse_NeverEmpty(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"", " ", "merhaba", "Selam!", "nasılsın", "yardım", "bir kedi çiz", "react component yaz",
		"hangi programlama dilini seviyorsun", "hi", "what can you do?", "🙂", strings.Repeat("ğüşiöç", 200),
		"\x00\xff", "İSTANBUL",
	}
	for _, in := range inputs {
		for _, l := range []Locale{LocaleTR, LocaleEN, "de", ""} {
			assert.NotEmpty(t, CannedResponse(in, "gpt-4o", l), "input %q locale %q", in, l)
		}
	}
}

func TestCannedResponse_NamesModel(t *testing.T) {
	t.Parallel()
	out := CannedResponse("merhaba", "gpt-4.1", LocaleTR)
	assert.Contains(t, out, "gpt-4.1")
	assert.True(t, strings.HasPrefix(out, "**Şu anda: gpt-4.1"))

	out = CannedResponse("hello", "gpt-4.1", LocaleEN)
	assert.True(t, strings.HasPrefix(out, "**Currently simulating the gpt-4.1"))
}

func TestCannedTopic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg  string
		want string
	}{
		{"En sevdiğin dil hangisi?", "languages"},
		{"bir resim çiz", "image"},
		{"Python kodu yaz", "code"},
		{"Merhaba!", "greeting"},
		{"hi there", "greeting"},
		{"this is fine", "generic"},
		{"naber", "wellbeing"},
		{"bana yardım et", "help"},
		{"hava bugün nasıl olacak", "generic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CannedTopic(tt.msg), tt.msg)
	}
}

func TestCannedResponse_QuotesLongMessages(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 500)
	out := CannedResponse(long, "m", LocaleEN)
	assert.NotContains(t, out, long)
	assert.Contains(t, out, strings.Repeat("a", maxQuoteRunes)+"…")
}
