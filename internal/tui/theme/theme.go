package theme

import (
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/glabrego/easel-cli/internal/gesture"
)

const (
	heartHex = "#f38ba8"
	baseHex  = "#1e1e2e"
)

type Theme struct {
	Title     lipgloss.Style
	ModePill  lipgloss.Style
	Section   lipgloss.Style
	MetaLabel lipgloss.Style
	MetaValue lipgloss.Style
	StateIdle lipgloss.Style
	StateWarn lipgloss.Style
	StateLoad lipgloss.Style

	Card       lipgloss.Style
	ActiveCard lipgloss.Style
	CardTitle  lipgloss.Style
	Artist     lipgloss.Style
	Image      lipgloss.Style
	Armed      lipgloss.Style
	Liked      lipgloss.Style
	NotLiked   lipgloss.Style
}

func Default() Theme {
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color(heartHex)
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay0 := lipgloss.Color("#6c7086")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")
	cpSurface1 := lipgloss.Color("#45475a")

	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		ModePill:  lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		Section:   lipgloss.NewStyle().Bold(true).Foreground(cpTeal),
		MetaLabel: lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue: lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle: lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn: lipgloss.NewStyle().Foreground(cpRed),
		StateLoad: lipgloss.NewStyle().Foreground(cpPeach),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cpSurface1).
			Padding(0, 1),
		ActiveCard: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cpMauve).
			Padding(0, 1),
		CardTitle: lipgloss.NewStyle().Bold(true).Foreground(cpText),
		Artist:    lipgloss.NewStyle().Foreground(cpSubtext0),
		Image:     lipgloss.NewStyle().Foreground(cpOverlay0),
		Armed:     lipgloss.NewStyle().Foreground(cpYellow),
		Liked:     lipgloss.NewStyle().Bold(true).Foreground(cpRed),
		NotLiked:  lipgloss.NewStyle().Foreground(cpOverlay1),
	}
}

// Heart renders the like marker and count of a card.
func (t Theme) Heart(liked bool, label string) string {
	if liked {
		return t.Liked.Render("♥ " + label)
	}
	return t.NotLiked.Render("♡ " + label)
}

var burstGlyphs = []string{"·", "•", "♥", "❤", "❤ ❤", "❤ ❤ ❤"}

// Burst renders one frame of the double-tap like animation. Scale picks the
// glyph and opacity fades the color into the background.
func (t Theme) Burst(frame gesture.Frame) string {
	if frame.Done || frame.Opacity <= 0 {
		return ""
	}
	idx := int(frame.Scale * float64(len(burstGlyphs)-2))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(burstGlyphs) {
		idx = len(burstGlyphs) - 1
	}
	return lipgloss.NewStyle().Bold(true).Foreground(FadeColor(frame.Opacity)).Render(burstGlyphs[idx])
}

// FadeColor blends the heart color into the background; opacity 1 is the
// full heart color and 0 the background.
func FadeColor(opacity float64) lipgloss.Color {
	heart, _ := colorful.Hex(heartHex)
	base, _ := colorful.Hex(baseHex)
	opacity = min(max(opacity, 0), 1)
	return lipgloss.Color(base.BlendRgb(heart, opacity).Clamped().Hex())
}
