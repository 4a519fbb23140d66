package moderation

import (
	"log/slog"
	"testing"
	"testing/fstest"

	"gym-chat/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			words:    []string{"badger", "badger", "badger"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			words:    []string{"snake", "badger"},
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger!",
			expected: "I love ******!",
			words:    []string{"badger"},
		},
		{
			name:     "Nothing to censor",
			input:    "Gym-Chat is amazing",
			expected: "Gym-Chat is amazing",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_NoiseOnlyEntries(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given real noise and not leet speak associated
	mod, err := NewModerator([]string{"...", ",,,", "", "badger"}, replacementChar, log)
	req.NoError(err)

	// Then the sentence is censored
	content, words := mod.Censor("The badger is safe")
	req.Equal("The ****** is safe", content)
	req.Equal([]string{"badger"}, words)

	// Then real noise is uncensored
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)

	_, err = NewModerator([]string{"...", " "}, replacementChar, log)
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestPassthrough_Censor(t *testing.T) {
	req := require.New(t)
	content, words := Passthrough{}.Censor("badger")
	req.Equal("badger", content)
	req.Nil(words)
}

func TestLoadDictionary_MergesLanguages(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt":        {Data: []byte("squat\r\nburpee\n\n# comment\n")},
		"censored/fr.txt":        {Data: []byte("burpee\n")},
		"censored/README.md":     {Data: []byte("not a dictionary")},
		"censored/nested/de.txt": {Data: []byte("ignored\n")},
	}

	dictionary, err := loadDictionary(fsys, "censored")
	req.NoError(err)
	req.Equal([]string{"burpee", "squat"}, dictionary.Words)
	req.Equal([]string{"en", "fr"}, dictionary.Languages)
}

func TestLoadDictionary_Empty(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"censored/en.txt": {Data: []byte("\n# nothing\n")}}

	_, err := loadDictionary(fsys, "censored")
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestLoadDictionary_Embedded(t *testing.T) {
	req := require.New(t)
	dictionary, err := LoadDictionary()
	req.NoError(err)
	req.Contains(dictionary.Languages, "en")

	mod, err := NewModerator(dictionary.Words, replacementChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	content, words := mod.Censor("this is bullshit")
	req.Equal("this is ********", content)
	req.NotEmpty(words)
}

func BenchmarkModerator_Censor(b *testing.B) {
	dictionary, err := LoadDictionary()
	require.NoError(b, err)
	mod, err := NewModerator(dictionary.Words, replacementChar, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor("See you at 6 for leg day, bring chalk and a towel!")
	}
}
