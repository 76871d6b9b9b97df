package generation

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgSucceeded = "Successfully generated %d images with AI"
	msgFailed    = "AI generation failed: %s"
	msgTimedOut  = "Prediction timed out"
	msgCancelled = "Generation was cancelled"
)

var supportedLocales = []language.Tag{language.English, language.Indonesian}

var (
	localeMatcher = language.NewMatcher(supportedLocales)
	messages      = newCatalog()
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	for _, key := range []string{msgSucceeded, msgFailed, msgTimedOut, msgCancelled} {
		set(language.English, key, key)
	}
	set(language.Indonesian, msgSucceeded, "Berhasil membuat %d gambar dengan AI")
	set(language.Indonesian, msgFailed, "Pembuatan gambar AI gagal: %s")
	set(language.Indonesian, msgTimedOut, "Waktu prediksi habis")
	set(language.Indonesian, msgCancelled, "Pembuatan gambar dibatalkan")
	return b
}

// MatchLocale returns the supported locale closest to locale, defaulting to English.
func MatchLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supportedLocales[idx]
}

func printer(locale string) *message.Printer {
	return message.NewPrinter(MatchLocale(locale), message.Catalog(messages))
}

func successMessage(locale string, count int) string {
	return printer(locale).Sprintf(msgSucceeded, count)
}

func failureMessage(locale, reason string) string {
	return printer(locale).Sprintf(msgFailed, reason)
}

func timedOutReason(locale string) string {
	return printer(locale).Sprintf(msgTimedOut)
}

func cancelledReason(locale string) string {
	return printer(locale).Sprintf(msgCancelled)
}
