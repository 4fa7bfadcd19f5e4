package export

import (
	"strings"

	ppt "github.com/VantageDataChat/GoPPT"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
)

// palette holds ARGB colors ("FFRRGGBB").
type palette struct {
	heading    string
	body       string
	accent     string
	background string
}

func paletteFor(t *deck.Theme) palette {
	def := deck.DefaultTheme()
	if t == nil {
		t = &def
	}
	return palette{
		heading:    argb(t.Text.Heading, def.Text.Heading),
		body:       argb(t.Text.Body, def.Text.Body),
		accent:     argb(t.Primary, def.Primary),
		background: argb(t.Background, def.Background),
	}
}

func argb(hex, fallback string) string {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		h = strings.TrimPrefix(fallback, "#")
	}
	return "FF" + strings.ToUpper(h)
}

func solidFill(argb string) *ppt.Fill {
	return ppt.NewFill().SetSolid(ppt.NewColor(argb))
}
