package router

import (
	"context"
	"strings"
)

// PromptCache stores optimized image prompts keyed by the original message.
type PromptCache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

const optimizeInstruction = "Rewrite the following request as one concise, vivid English prompt for an image " +
	"generation model. Describe subject, style, lighting and composition. Reply with the prompt only.\n\nRequest: "

const promptSuffix = ", highly detailed, high quality, digital art"

// optimizePrompt turns an image request into an English prompt, asking the
// persona backend first and falling back to HeuristicPrompt.
func (r *Router) optimizePrompt(ctx context.Context, message string) string {
	key := cacheKey(message)
	if r.opts.Cache != nil {
		if p, ok := r.opts.Cache.Get(key); ok {
			return p
		}
	}

	prompt := ""
	if r.backends.Persona != nil {
		callCtx, cancel := r.callContext(ctx)
		reply, err := r.backends.Persona.Chat(callCtx, optimizeInstruction+message, nil)
		cancel()
		if err == nil {
			prompt = cleanPrompt(reply)
		} else if ctx.Err() == nil {
			r.log(ctx).Warn("prompt optimization failed, using heuristic", "error", err)
		}
	}
	if prompt == "" {
		prompt = HeuristicPrompt(message)
	}

	if r.opts.Cache != nil && ctx.Err() == nil {
		r.opts.Cache.Set(key, prompt)
	}
	return prompt
}

func cacheKey(message string) string {
	return "prompt:" + strings.Join(strings.Fields(lowerTR(message)), " ")
}

// cleanPrompt strips quoting and labels a chat model tends to add.
func cleanPrompt(s string) string {
	s = strings.TrimSpace(s)
	for _, label := range []string{"Prompt:", "prompt:", "PROMPT:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, label))
	}
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}

// translations maps Turkish words to English for HeuristicPrompt.
var translations = map[string]string{
	"kedi": "cat", "kediler": "cats", "köpek": "dog", "köpekler": "dogs", "kuş": "bird", "at": "horse",
	"balık": "fish", "aslan": "lion", "kaplan": "tiger", "kurt": "wolf", "tilki": "fox", "ejderha": "dragon",
	"ağaç": "tree", "orman": "forest", "deniz": "sea", "okyanus": "ocean", "dağ": "mountain", "göl": "lake",
	"nehir": "river", "güneş": "sun", "ay": "moon", "yıldız": "star", "yıldızlar": "stars", "gökyüzü": "sky",
	"bulut": "cloud", "şehir": "city", "araba": "car", "ev": "house", "kale": "castle", "köprü": "bridge",
	"çiçek": "flower", "çiçekler": "flowers", "manzara": "landscape", "plaj": "beach", "uzay": "space",
	"gezegen": "planet", "robot": "robot", "insan": "person", "kadın": "woman", "adam": "man", "çocuk": "child",
	"kız": "girl", "oğlan": "boy", "portre": "portrait", "logo": "logo", "gece": "night", "sabah": "morning",
	"akşam": "evening", "gün": "day", "batımı": "sunset", "doğumu": "sunrise", "kış": "winter", "yaz": "summer",
	"ilkbahar": "spring", "sonbahar": "autumn", "kar": "snow", "yağmur": "rain", "kırmızı": "red", "mavi": "blue",
	"yeşil": "green", "sarı": "yellow", "siyah": "black", "beyaz": "white", "mor": "purple", "turuncu": "orange",
	"pembe": "pink", "altın": "golden", "büyük": "big", "küçük": "small", "güzel": "beautiful", "sevimli": "cute",
	"karanlık": "dark", "parlak": "bright", "eski": "old", "yeni": "new", "fütüristik": "futuristic",
	"gerçekçi": "realistic", "şirin": "cute", "uçan": "flying", "oturan": "sitting", "koşan": "running",
	"ve": "and", "ile": "with", "üstünde": "on", "altında": "under", "içinde": "in",
}

// stopWords are request phrasing with no visual content.
var stopWords = map[string]bool{
	"bir": true, "bi": true, "bana": true, "benim": true, "için": true, "lütfen": true, "bize": true,
	"çiz": true, "çizer": true, "çizin": true, "çizermisin": true, "misin": true, "mısın": true, "musun": true,
	"resim": true, "resmi": true, "resmini": true, "görsel": true, "görseli": true, "görselini": true, "fotoğraf": true,
	"fotoğrafı": true, "yap": true, "yapar": true, "yapın": true, "oluştur": true, "oluşturur": true, "üret": true,
	"tasarla": true, "hazırla": true, "göster": true,
	"please": true, "draw": true, "create": true, "make": true, "generate": true, "render": true, "paint": true,
	"design": true, "image": true, "picture": true, "photo": true, "me": true, "a": true, "an": true, "of": true,
	"can": true, "you": true, "could": true,
}

// HeuristicPrompt builds an English prompt by word substitution. It is the
// offline fallback of prompt optimization and never returns "".
func HeuristicPrompt(message string) string {
	words := tokenize(lowerTR(message))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		if en, ok := translations[w]; ok {
			w = en
		}
		out = append(out, w)
	}
	subject := strings.Join(out, " ")
	if subject == "" {
		subject = strings.TrimSpace(message)
	}
	if subject == "" {
		subject = "an abstract artwork"
	}
	return subject + promptSuffix
}
