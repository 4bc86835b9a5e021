package view

import (
	"fmt"
	"strings"

	tuitheme "github.com/glabrego/easel-cli/internal/tui/theme"
)

type Detail struct {
	Title     string
	Artist    string
	Liked     bool
	LikeCount int
	ViewCount int
	Aspect    string
	ImageURL  string
	Images    int
	Burst     string
}

func DetailLines(d Detail, width int, th tuitheme.Theme) []string {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = "(untitled)"
	}
	lines := make([]string, 0, 16)
	for _, l := range wrap(title, width) {
		lines = append(lines, th.Title.Render(l))
	}
	lines = append(lines, strings.Repeat("=", max(1, min(width, visibleLen(title)))))
	lines = append(lines, "")

	if d.Artist != "" {
		lines = append(lines, wrap("Artist: "+d.Artist, width)...)
	}
	lines = append(lines, "", th.Section.Render("Engagement"))
	heart := th.Heart(d.Liked, fmt.Sprintf("%d likes", d.LikeCount))
	if d.Burst != "" {
		heart += "  " + d.Burst
	}
	lines = append(lines, heart)
	lines = append(lines, fmt.Sprintf("Views: %d", d.ViewCount))
	if d.Aspect != "" {
		lines = append(lines, "Aspect: "+d.Aspect)
	}
	if d.Images > 1 {
		lines = append(lines, fmt.Sprintf("Images: %d", d.Images))
	}
	if d.ImageURL != "" {
		lines = append(lines, wrap("Image: "+d.ImageURL, width)...)
	}
	return lines
}

func DetailMaxTop(linesLen, bodyHeight int) int {
	maxTop := linesLen - bodyHeight
	if maxTop < 0 {
		return 0
	}
	return maxTop
}

func RenderDetailLines(lines []string, top, maxLines int) string {
	if len(lines) == 0 {
		return ""
	}
	if top < 0 {
		top = 0
	}
	if top > len(lines)-1 {
		top = len(lines) - 1
	}
	end := len(lines)
	if maxLines > 0 && top+maxLines < end {
		end = top + maxLines
	}
	return strings.Join(lines[top:end], "\n") + "\n"
}
