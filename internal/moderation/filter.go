// Package moderation detects offensive words in free-text input.
package moderation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Filter matches text against a list of blocked substrings, ignoring case.
type Filter struct {
	words []string
}

// NewFilter builds a filter. Blank entries are dropped.
func NewFilter(words []string) *Filter {
	f := &Filter{words: make([]string, 0, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			f.words = append(f.words, w)
		}
	}
	return f
}

// LoadFile reads one word per line. Lines starting with '#' are comments.
func LoadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open moderation list: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read moderation list: %w", err)
	}
	return words, nil
}

// Match returns the first blocked word contained in text.
func (f *Filter) Match(text string) (string, bool) {
	if f == nil || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, w := range f.words {
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

// Len returns the number of configured words.
func (f *Filter) Len() int { return len(f.words) }

// DefaultWords is the built-in Uzbek/Russian/English list. Entries shorter
// than three letters are left out because they match inside ordinary words.
func DefaultWords() []string {
	words := make([]string, 0, len(defaultWords))
	for _, w := range defaultWords {
		if utf8.RuneCountInString(w) >= 3 {
			words = append(words, w)
		}
	}
	return words
}

var defaultWords = []string{
	// uz
	"ahmoq", "jinni", "tentak", "johil", "yaramas", "harom", "haromi", "noshud",
	"itvachcha", "kal", "kalla", "pastkash", "nol", "gandon", "shayton", "shaytonvachcha",
	"g‘irt", "g‘irt tentak", "aniq axmoq", "befoyda", "yaroqsiz",
	"besharm", "besharmcha", "yebsan", "axmoq", "kaltak",
	"sik", "sikki", "sikkina", "sikaman", "sikildim", "sikdir", "siktir", "sikvoy", "qot", "qotib qol",
	"bosib ket", "sikay", "sikadi", "sikadiyam", "sikka", "sikdirish", "ebsan",
	"jeb", "jebsan", "jebsang", "jebvor", "emchak", "emchakvoy", "sikuvor", "piss", "pissa",
	"fuck", "fuck you", "shit", "asshole",
	// ru
	"дурак", "идиот", "тупой", "сволочь", "мудак", "ублюдок", "сука",
	"блядь", "хуй", "пизда", "ебан", "ебаный", "гондон", "залупа",
	"пидор", "пидорас", "нахуй", "ебать", "ебался", "ёбана",
	"еблан", "мразь", "уебище", "хуесос", "жопа", "жополиз", "бля", "блят",
	"соси", "чмо", "даун", "шалава", "пошел нахуй", "нах", "нахер", "нахрен",
	// two-letter entries kept for custom lists only
	"it", "ye", "em", "eb", "ёб",
}
