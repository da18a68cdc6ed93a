// Package assets resolves boss images, sound effects and backgrounds for a
// subject, falling back to generated content when files are missing.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/url"
	"path"
	"sync"

	"github.com/gopxl/beep/wav"
	"go.uber.org/zap"
)

var ErrUnknownVariant = errors.New("unknown image variant")
var ErrUnknownCue = errors.New("unknown sound cue")
var ErrBadSubject = errors.New("bad subject")

type Variant string

const (
	VariantBase     Variant = "base"
	VariantAttack   Variant = "attack"
	VariantHit      Variant = "hit"
	VariantDefeated Variant = "defeated"
)

// Variants lists every boss pose in render order.
var Variants = []Variant{VariantBase, VariantAttack, VariantHit, VariantDefeated}

func (v Variant) valid() bool {
	for _, known := range Variants {
		if v == known {
			return true
		}
	}
	return false
}

type Cue string

const (
	CueHit  Cue = "hit"
	CueMiss Cue = "miss"
	CueWin  Cue = "win"
)

// Cues lists every sound cue.
var Cues = []Cue{CueHit, CueMiss, CueWin}

var sfxPrefix = map[string]string{
	"math":                "dragon",
	"phonics":             "owl",
	"story-comprehension": "sphinx",
}

var cueSuffix = map[Cue]string{
	CueHit:  "hit",
	CueMiss: "attack",
	CueWin:  "victory",
}

// ImageURL is where the HTTP surface serves a subject's pose.
func ImageURL(subject string, v Variant) string {
	return "/assets/" + url.PathEscape(subject) + "/images/" + string(v)
}

// SoundURL is where the HTTP surface serves a subject's cue.
func SoundURL(subject string, c Cue) string {
	return "/assets/" + url.PathEscape(subject) + "/sounds/" + string(c)
}

// Asset is a resolved file ready to serve.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
	Fallback    bool
}

type Library struct {
	fsys fs.FS
	log  *zap.Logger

	mu    sync.Mutex
	tones map[Cue][]byte
}

func New(fsys fs.FS, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{fsys: fsys, log: log, tones: make(map[Cue][]byte)}
}

func imagePath(subject string, v Variant) string {
	return path.Join("bosses", subject+"-boss", string(v)+"-position.png")
}

func soundPath(prefix string, c Cue) string {
	return path.Join("sfx", prefix+"_"+cueSuffix[c]+".wav")
}

func checkSubject(subject string) error {
	if subject == "" || !fs.ValidPath(subject) || path.Base(subject) != subject {
		return fmt.Errorf("%w: %q", ErrBadSubject, subject)
	}
	return nil
}

// Image returns the requested pose, the base pose when that is missing, and
// a generated placeholder when neither exists.
func (l *Library) Image(subject string, v Variant) (Asset, error) {
	if !v.valid() {
		return Asset{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	if err := checkSubject(subject); err != nil {
		return Asset{}, err
	}

	for _, candidate := range []Variant{v, VariantBase} {
		p := imagePath(subject, candidate)
		data, err := fs.ReadFile(l.fsys, p)
		if err == nil {
			return Asset{Name: p, ContentType: "image/png", Data: data, Fallback: candidate != v}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			l.log.Warn("boss image unreadable", zap.String("path", p), zap.Error(err))
		}
	}
	return Asset{
		Name:        "placeholder.svg",
		ContentType: "image/svg+xml",
		Data:        placeholder(subject, v),
		Fallback:    true,
	}, nil
}

// Sound returns the subject's effect for cue, or a synthesized tone when the
// file is missing or does not decode as WAV.
func (l *Library) Sound(subject string, c Cue) (Asset, error) {
	if _, ok := cueSuffix[c]; !ok {
		return Asset{}, fmt.Errorf("%w: %q", ErrUnknownCue, c)
	}
	if prefix, ok := sfxPrefix[subject]; ok {
		p := soundPath(prefix, c)
		data, err := fs.ReadFile(l.fsys, p)
		switch {
		case err == nil && validWAV(data):
			return Asset{Name: p, ContentType: "audio/wav", Data: data}, nil
		case err == nil:
			l.log.Warn("sound effect does not decode, using tone", zap.String("path", p))
		case !errors.Is(err, fs.ErrNotExist):
			l.log.Warn("sound effect unreadable, using tone", zap.String("path", p), zap.Error(err))
		}
	}

	data, err := l.tone(c)
	if err != nil {
		return Asset{}, err
	}
	return Asset{Name: string(c) + ".wav", ContentType: "audio/wav", Data: data, Fallback: true}, nil
}

func (l *Library) tone(c Cue) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if data, ok := l.tones[c]; ok {
		return data, nil
	}
	data, err := Tone(c)
	if err != nil {
		return nil, err
	}
	l.tones[c] = data
	return data, nil
}

func validWAV(data []byte) bool {
	s, _, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	s.Close()
	return true
}

func placeholder(subject string, v Variant) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512" viewBox="0 0 512 512">`+
		`<rect width="512" height="512" rx="32" fill="#1f2937"/>`+
		`<text x="256" y="240" font-family="sans-serif" font-size="40" fill="#f9fafb" text-anchor="middle">%s</text>`+
		`<text x="256" y="300" font-family="sans-serif" font-size="28" fill="#9ca3af" text-anchor="middle">%s</text>`+
		`</svg>`, html.EscapeString(subject), v))
}
