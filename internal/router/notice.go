package router

import "fmt"

type notices struct {
	systemPrompt string
	fallback     string
	unavailable  string
	cannedBanner string
	defaultTitle string
	serverError  string
}

var noticeTable = map[Locale]notices{
	LocaleTR: {
		systemPrompt: "Sen %s modelini kullanan, Türkçe konuşan, samimi ve yardımsever bir yapay zeka asistanısın. " +
			"Emoji kullanabilirsin, rahat konuş ama profesyonel kal. Kod yazabilir, resim çizebilir ve her konuda yardım edebilirsin.",
		fallback:     "_ℹ️ %s şu anda yoğun olduğu için bu yanıtı %s verdi._",
		unavailable:  "😔 Tüm modeller şu anda yoğun. Lütfen birkaç dakika sonra tekrar dene.",
		cannedBanner: "**Şu anda: %s modelini simüle ediyorum** 🤖\n\n",
		defaultTitle: "Yeni Sohbet",
		serverError:  "Sunucu hatası oluştu",
	},
	LocaleEN: {
		systemPrompt: "You are a friendly, helpful AI assistant running the %s model. " +
			"Feel free to use emoji and keep the tone relaxed but professional. You can write code, draw images and help with any topic.",
		fallback:     "_ℹ️ %s is busy right now, so %s answered instead._",
		unavailable:  "😔 All models are busy right now. Please try again in a few minutes.",
		cannedBanner: "**Currently simulating the %s model** 🤖\n\n",
		defaultTitle: "New Chat",
		serverError:  "A server error occurred",
	},
}

func noticesFor(l Locale) notices {
	if n, ok := noticeTable[l]; ok {
		return n
	}
	return noticeTable[LocaleTR]
}

// SystemPrompt returns the localized system preamble naming model.
func SystemPrompt(model string, l Locale) string {
	return fmt.Sprintf(noticesFor(l).systemPrompt, model)
}

// FallbackNotice is the provenance note attached when answered replaced
// requested.
func FallbackNotice(requested, answered string, l Locale) string {
	return fmt.Sprintf(noticesFor(l).fallback, requested, answered)
}

// UnavailableMessage is the reply used when the fallback chain is exhausted.
func UnavailableMessage(l Locale) string {
	return noticesFor(l).unavailable
}

// DefaultTitle names a conversation whose first message is blank.
func DefaultTitle(l Locale) string {
	return noticesFor(l).defaultTitle
}

// ServerErrorMessage is shown when a chat request fails inside the server.
func ServerErrorMessage(l Locale) string {
	return noticesFor(l).serverError
}
