package assets

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultBackground selects the built-in backdrop.
const DefaultBackground = "__default__"

const manifestPath = "backgrounds/manifest.json"

type Background struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

var (
	extension  = regexp.MustCompile(`\.[^/.]+$`)
	separators = regexp.MustCompile(`[-_]+`)
)

// Label turns a file name like "dark-forest_2.png" into "Dark Forest 2".
func Label(name string) string {
	if name == DefaultBackground {
		return "Default"
	}
	base := separators.ReplaceAllString(extension.ReplaceAllString(name, ""), " ")
	return cases.Title(language.English, cases.NoLower).String(strings.TrimSpace(base))
}

// Backgrounds lists the default backdrop followed by every manifest entry
// whose file exists. A missing or unreadable manifest yields only the default.
func (l *Library) Backgrounds() []Background {
	out := []Background{{Name: DefaultBackground, Label: Label(DefaultBackground)}}

	raw, err := fs.ReadFile(l.fsys, manifestPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.log.Warn("background manifest unreadable", zap.Error(err))
		}
		return out
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		l.log.Warn("background manifest parse error", zap.Error(err))
		return out
	}
	for _, n := range names {
		if n == DefaultBackground || !fs.ValidPath(n) {
			continue
		}
		if _, err := fs.Stat(l.fsys, path.Join("backgrounds", n)); err != nil {
			l.log.Debug("background missing", zap.String("name", n))
			continue
		}
		out = append(out, Background{Name: n, Label: Label(n)})
	}
	return out
}

// Background opens a listed backdrop file.
func (l *Library) Background(name string) (Asset, error) {
	if name == DefaultBackground || !fs.ValidPath(name) || path.Base(name) != name {
		return Asset{}, fs.ErrNotExist
	}
	p := path.Join("backgrounds", name)
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return Asset{}, err
	}
	return Asset{Name: p, ContentType: contentType(name), Data: data}, nil
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}
