package ocrquality

import "strings"

// TesseractConfig configures the tesseract engine.
type TesseractConfig struct {
	TessdataPrefix string // directory holding *.traineddata; empty uses TESSDATA_PREFIX
}

var tesseractLanguages = map[string]string{
	"ru": "rus",
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"uk": "ukr",
	"kk": "kaz",
}

// TesseractLanguage maps ISO 639-1 codes and "+"-joined lists to tesseract language codes.
// Unknown codes pass through unchanged.
func TesseractLanguage(lang string) []string {
	var out []string
	for _, part := range strings.Split(lang, "+") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if code, ok := tesseractLanguages[part]; ok {
			part = code
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		out = []string{"rus"}
	}
	return out
}
