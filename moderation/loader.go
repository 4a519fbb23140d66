package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"gym-chat/errors"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// Dictionary is the merged content of every language file.
type Dictionary struct {
	Words     []string
	Languages []string
}

// LoadDictionary reads the embedded word lists, one language per .txt file.
func LoadDictionary() (Dictionary, error) {
	return loadDictionary(censoredFS, "censored")
}

func loadDictionary(fsys fs.FS, dir string) (Dictionary, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return Dictionary{}, err
	}

	var dictionary Dictionary
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		dictionary.Languages = append(dictionary.Languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return Dictionary{}, err
		}
		// Scanner copes with both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				dictionary.Words = append(dictionary.Words, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return Dictionary{}, err
		}
	}

	dictionary.Words = lo.Uniq(dictionary.Words)
	if len(dictionary.Words) == 0 {
		return Dictionary{}, errors.ErrEmptyWords
	}
	slices.Sort(dictionary.Words)
	return dictionary, nil
}
