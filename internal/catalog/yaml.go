package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"dragonsea/internal/domain"

	"gopkg.in/yaml.v3"
)

// deckFile is the on-disk deck format. JSON deck files parse as well.
type deckFile struct {
	Key          string     `yaml:"key"`
	Name         string     `yaml:"name"`
	OriginalName string     `yaml:"original_name"`
	Type         string     `yaml:"type"`
	Cards        []cardFile `yaml:"cards"`
}

type cardFile struct {
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
}

// LoadDir reads every deck file in dir.
func LoadDir(dir string) ([]domain.Deck, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads every *.yaml, *.yml and *.json deck file at the root of fsys.
// A deck's key defaults to its normalized file name and its type to custom.
func LoadFS(fsys fs.FS) ([]domain.Deck, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read deck dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		switch path.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
			if !e.IsDir() {
				files = append(files, e.Name())
			}
		}
	}
	sort.Strings(files)

	decks := make([]domain.Deck, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read deck %s: %w", name, err)
		}
		d, err := ParseDeck(strings.TrimSuffix(name, path.Ext(name)), data)
		if err != nil {
			return nil, fmt.Errorf("parse deck %s: %w", name, err)
		}
		if other, ok := seen[d.Key]; ok {
			return nil, fmt.Errorf("%w: %s in %s and %s", domain.ErrDeckAlreadyExists, d.Key, other, name)
		}
		seen[d.Key] = name
		decks = append(decks, d)
	}
	return decks, nil
}

// ParseDeck decodes one deck file. stem names the deck when the file does not.
func ParseDeck(stem string, data []byte) (domain.Deck, error) {
	var f deckFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.Deck{}, err
	}

	name := f.Name
	if name == "" {
		name = f.OriginalName
	}
	if name == "" {
		name = stem
	}
	key := NormalizeKey(f.Key)
	if key == "" {
		key = NormalizeKey(stem)
	}
	if key == "" {
		return domain.Deck{}, ErrInvalidDeckName
	}

	t := domain.DeckCustom
	if f.Type != "" {
		var err error
		if t, err = domain.ParseDeckType(f.Type); err != nil {
			return domain.Deck{}, err
		}
	}

	d := domain.Deck{Key: key, Name: name, Type: t, Cards: make([]domain.Card, 0, len(f.Cards))}
	for _, c := range f.Cards {
		if strings.TrimSpace(c.Name) == "" {
			return domain.Deck{}, fmt.Errorf("deck %s: card without a name", key)
		}
		d.Cards = append(d.Cards, domain.NewCard(c.Name, c.Image))
	}
	return d, nil
}
