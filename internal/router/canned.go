package router

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

type cannedTopic struct {
	name string
	// substrings match anywhere; words must be whole tokens.
	substrings []string
	words      []string
	reply      map[Locale]string
}

// cannedTopics are checked in order; the first match wins. Replies take the
// model id as their only format argument.
var cannedTopics = []cannedTopic{
	{
		name:       "languages",
		substrings: []string{"programlama dili", "sevdiğin dil", "programming language", "favorite language"},
		reply: map[Locale]string{
			LocaleTR: "💻 Programlama dilleri hakkında konuşmayı çok seviyorum!\n\n" +
				"**Favorilerim:**\n\n" +
				"🔥 **Go** - sade, hızlı, eşzamanlılık için biçilmiş kaftan\n\n" +
				"⚡ **Python** - basit ve güçlü, yapay zekadan web'e her yerde\n\n" +
				"🚀 **Rust** - bellek güvenliği ve performans\n\n" +
				"💎 **TypeScript** - tip güvenliği olan JavaScript\n\n" +
				"Sen hangi dilleri kullanıyorsun? %s olarak yardımcı olmaya hazırım! 🤓",
			LocaleEN: "💻 I love talking about programming languages!\n\n" +
				"**My favourites:**\n\n" +
				"🔥 **Go** - simple, fast, made for concurrency\n\n" +
				"⚡ **Python** - easy and powerful, from AI to the web\n\n" +
				"🚀 **Rust** - memory safety plus performance\n\n" +
				"💎 **TypeScript** - JavaScript with types\n\n" +
				"Which languages do you use? %s is ready to help! 🤓",
		},
	},
	{
		name:       "image",
		substrings: []string{"resim", "çiz", "görsel", "image", "picture", "draw"},
		reply: map[Locale]string{
			LocaleTR: "🎨 Resim çizmeyi çok seviyorum!\n\n" +
				"Ne çizmemi istersin?\n" +
				"- 🌅 Manzara (gün doğumu, orman, deniz)\n" +
				"- 🤖 Bilim kurgu (robot, uzay, cyberpunk)\n" +
				"- 🎭 Portre (anime, gerçekçi, çizgi film)\n" +
				"- 🏛️ Mimari (modern, tarihi)\n\n" +
				"Bir görsel modeli seçersen %s yerine gerçek bir resim üretebilirim! 🚀",
			LocaleEN: "🎨 I love drawing!\n\n" +
				"What should I draw?\n" +
				"- 🌅 Landscape (sunrise, forest, sea)\n" +
				"- 🤖 Sci-fi (robot, space, cyberpunk)\n" +
				"- 🎭 Portrait (anime, realistic, cartoon)\n" +
				"- 🏛️ Architecture (modern, historical)\n\n" +
				"Pick an image model instead of %s and I can generate a real picture! 🚀",
		},
	},
	{
		name:       "code",
		substrings: []string{"kod", "code", "react", "javascript", "python", "golang", "component", "function", "fonksiyon"},
		reply: map[Locale]string{
			LocaleTR: "💻 Kod yazmaya bayılıyorum! Hangi dilde ne yapmak istiyorsun?\n\n" +
				"**Popüler istekler:**\n" +
				"- ⚛️ React bileşeni\n" +
				"- 🐍 Python betiği\n" +
				"- 🐹 Go servisi\n" +
				"- 🎯 Algoritma çözümü\n\n" +
				"```go\nfunc greet(name string) string {\n\treturn \"Merhaba, \" + name + \"!\"\n}\n```\n\n" +
				"%s ile hangi konuda kod yazalım? 🚀",
			LocaleEN: "💻 I love writing code! What do you want to build, and in which language?\n\n" +
				"**Popular requests:**\n" +
				"- ⚛️ React component\n" +
				"- 🐍 Python script\n" +
				"- 🐹 Go service\n" +
				"- 🎯 Algorithm puzzle\n\n" +
				"```go\nfunc greet(name string) string {\n\treturn \"Hello, \" + name + \"!\"\n}\n```\n\n" +
				"What should we code with %s? 🚀",
		},
	},
	{
		name:       "greeting",
		substrings: []string{"merhaba", "selam", "hello"},
		words:      []string{"hi", "hey", "slm", "mrb"},
		reply: map[Locale]string{
			LocaleTR: "Hey! 👋 Nasılsın?\n\n" +
				"Ben senin yapay zeka asistanınım, şu an **%s** ile konuşuyorsun.\n\n" +
				"🔥 **Neler yapabilirim:**\n" +
				"- 💬 Her konuda sohbet\n" +
				"- 💻 Her dilde kod\n" +
				"- 🎨 Resim çizimi\n" +
				"- 🧠 Problem çözme\n\n" +
				"Bugün ne yapmak istersin? 🚀",
			LocaleEN: "Hey! 👋 How are you?\n\n" +
				"I'm your AI assistant, and you're talking to **%s** right now.\n\n" +
				"🔥 **What I can do:**\n" +
				"- 💬 Chat about anything\n" +
				"- 💻 Write code in any language\n" +
				"- 🎨 Draw pictures\n" +
				"- 🧠 Solve problems\n\n" +
				"What would you like to do today? 🚀",
		},
	},
	{
		name:       "wellbeing",
		substrings: []string{"nasılsın", "naber", "how are you", "what's up"},
		reply: map[Locale]string{
			LocaleTR: "Süperim! 🔥 **%s** olarak çalışmak çok keyifli.\n\n" +
				"Sen nasılsın? Bugün hangi projelerle uğraşıyorsun? 😊",
			LocaleEN: "Great, thanks! 🔥 Working as **%s** is a lot of fun.\n\n" +
				"How about you? What are you working on today? 😊",
		},
	},
	{
		name:       "help",
		substrings: []string{"yardım", "neler yapabilirsin", "help", "what can you do"},
		reply: map[Locale]string{
			LocaleTR: "🚀 **%s ile neler yapabiliriz:**\n\n" +
				"💬 **Sohbet:** sorularını yanıtlarım, her konuda konuşurum\n\n" +
				"💻 **Kod:** bileşenler, fonksiyonlar, algoritmalar, hata ayıklama\n\n" +
				"🎨 **Resim:** gerçekçi, anime ya da soyut görseller\n\n" +
				"🧠 **Problem çözme:** adım adım açıklamalar\n\n" +
				"Ne yapmak istersin? 🔥",
			LocaleEN: "🚀 **What we can do with %s:**\n\n" +
				"💬 **Chat:** answers and conversation on any topic\n\n" +
				"💻 **Code:** components, functions, algorithms, debugging\n\n" +
				"🎨 **Images:** realistic, anime or abstract pictures\n\n" +
				"🧠 **Problem solving:** step-by-step explanations\n\n" +
				"What would you like to do? 🔥",
		},
	},
}

// genericReplies take the quoted message and the model id.
var genericReplies = map[Locale][]string{
	LocaleTR: {
		"İlginç! 🤔 \"%s\" konusunda **%s** olarak ne düşünmemi istersin? Biraz daha anlat! 💬",
		"Harika soru! 🚀 \"%s\" hakkında **%s** ile yardımcı olabilirim. Hangi açıdan bakalım? 💡",
		"Vay be! 😎 \"%s\" - **%s** olarak bu konuda söyleyecek çok şeyim var! Özellikle neyi merak ediyorsun? 🤓",
	},
	LocaleEN: {
		"Interesting! 🤔 What would you like **%[2]s** to think about \"%[1]s\"? Tell me more! 💬",
		"Great question! 🚀 **%[2]s** can help with \"%[1]s\". Which angle should we take? 💡",
		"Wow! 😎 \"%[1]s\" - as **%[2]s** I have plenty to say about that! What are you most curious about? 🤓",
	},
}

const maxQuoteRunes = 80

// CannedResponse returns a local reply for message that names model. It
// performs no I/O and always returns a non-empty string; the generic reply
// is picked at random.
func CannedResponse(message, model string, l Locale) string {
	if _, ok := noticeTable[l]; !ok {
		l = LocaleTR
	}
	banner := fmt.Sprintf(noticesFor(l).cannedBanner, model)

	folded := foldings(message)
	for _, topic := range cannedTopics {
		if topic.matches(folded) {
			return banner + fmt.Sprintf(topic.reply[l], model)
		}
	}

	replies := genericReplies[l]
	tmpl := replies[rand.IntN(len(replies))]
	return banner + fmt.Sprintf(tmpl, quote(message), model)
}

// CannedTopic returns the name of the topic message maps to, or "generic".
func CannedTopic(message string) string {
	folded := foldings(message)
	for _, topic := range cannedTopics {
		if topic.matches(folded) {
			return topic.name
		}
	}
	return "generic"
}

func (t cannedTopic) matches(folded []string) bool {
	for _, text := range folded {
		if containsAny(text, t.substrings) || containsWord(text, t.words) {
			return true
		}
	}
	return false
}

func quote(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	runes := []rune(message)
	if len(runes) > maxQuoteRunes {
		return string(runes[:maxQuoteRunes]) + "…"
	}
	return message
}
