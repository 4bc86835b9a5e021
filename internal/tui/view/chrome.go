package view

import (
	"fmt"
	"strings"

	tuitheme "github.com/glabrego/easel-cli/internal/tui/theme"
)

func Toolbar(inDetail, authenticated bool) string {
	if inDetail {
		if !authenticated {
			return "j/k scroll | [ ] prev/next | o open image | y copy | esc back | q quit"
		}
		return "j/k scroll | [ ] prev/next | l like | c commission | o open image | y copy | esc back | q quit"
	}
	if !authenticated {
		return "h/j/k/l move | enter details | n more | r refresh | q quit | set EASEL_TOKEN to like"
	}
	return "h/j/k/l move | space×2 like | L like | enter details | n more | r refresh | q quit"
}

type FooterParams struct {
	Mode    string
	Page    int
	Shown   int
	Liked   int
	HasMore bool
	Columns int
}

func Footer(p FooterParams, th tuitheme.Theme) string {
	more := "end"
	if p.HasMore {
		more = "more"
	}
	parts := []string{
		th.MetaLabel.Render("mode") + " " + th.MetaValue.Render(p.Mode),
		th.MetaLabel.Render("page") + " " + th.MetaValue.Render(fmt.Sprintf("%d", p.Page)),
		th.MetaValue.Render(fmt.Sprintf("%d shown", p.Shown)),
		th.MetaValue.Render(fmt.Sprintf("%d liked", p.Liked)),
		th.MetaLabel.Render("cols") + " " + th.MetaValue.Render(fmt.Sprintf("%d", p.Columns)),
		th.MetaValue.Render(more),
	}
	return strings.Join(parts, " • ")
}

// Message renders the status line. spinner is shown in front of the state
// while loading.
func Message(loading bool, warning, status, spinner string, th tuitheme.Theme) string {
	state := "idle"
	stateLabel := th.StateIdle.Render("state")
	switch {
	case warning != "":
		state = "warning"
		stateLabel = th.StateWarn.Render("state")
	case loading:
		state = "loading"
		stateLabel = th.StateLoad.Render("state")
	}
	main := "Ready"
	if status != "" {
		main = status
	} else if warning != "" {
		main = warning
	}
	if loading && spinner != "" {
		stateLabel = spinner + " " + stateLabel
	}
	return fmt.Sprintf("%s: %s | %s", stateLabel, state, th.MetaValue.Render(main))
}
