package deck

import "time"

type Style string

const (
	StyleProfessional Style = "professional"
	StyleCasual       Style = "casual"
	StyleAcademic     Style = "academic"
)

const (
	MinSlides          = 1
	MaxSlides          = 10
	MinDurationMinutes = 1
	MaxDurationMinutes = 30
)

// Slide is one unit of a deck. ImageURL is either nil or a resolvable reference
// (absolute http(s) URL or data:image URI).
type Slide struct {
	Title              string  `json:"title" validate:"nonblank"`
	Body               string  `json:"body" validate:"nonblank"`
	Notes              string  `json:"notes,omitempty"`
	ImageURL           *string `json:"imageUrl" validate:"omitempty,imageref"`
	AIImageDescription string  `json:"ai_image_description,omitempty"`
}

type ThemeText struct {
	Heading string `json:"heading" validate:"hexcolor6"`
	Body    string `json:"body" validate:"hexcolor6"`
	Muted   string `json:"muted" validate:"hexcolor6"`
}

type Theme struct {
	Primary    string    `json:"primary" validate:"hexcolor6"`
	Secondary  string    `json:"secondary" validate:"hexcolor6"`
	Background string    `json:"background" validate:"hexcolor6"`
	Accent     string    `json:"accent" validate:"hexcolor6"`
	Text       ThemeText `json:"text"`
}

type Presentation struct {
	Title  string  `json:"title" validate:"nonblank"`
	Slides []Slide `json:"slides" validate:"min=1,dive"`
	Theme  *Theme  `json:"theme,omitempty"`
}

// GenerationRequest is the user's ask. Duration is in minutes.
type GenerationRequest struct {
	Topic          string `json:"topic" validate:"nonblank"`
	Description    string `json:"description" validate:"nonblank"`
	NumberOfSlides int    `json:"numberOfSlides" validate:"min=1,max=10"`
	Duration       int    `json:"duration" validate:"min=1,max=30"`
	Style          Style  `json:"style" validate:"oneof=professional casual academic"`
}

// StoredPresentationRecord is the persisted form of a deck.
type StoredPresentationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title,omitempty"`
	Slides    []Slide   `json:"slides"`
}

func (s Slide) HasImage() bool {
	return s.ImageURL != nil && *s.ImageURL != ""
}

func (s Slide) Clone() Slide {
	out := s
	if s.ImageURL != nil {
		v := *s.ImageURL
		out.ImageURL = &v
	}
	return out
}

func (p *Presentation) Clone() *Presentation {
	if p == nil {
		return nil
	}
	out := &Presentation{Title: p.Title}
	if p.Slides != nil {
		out.Slides = make([]Slide, len(p.Slides))
		for i := range p.Slides {
			out.Slides[i] = p.Slides[i].Clone()
		}
	}
	if p.Theme != nil {
		th := *p.Theme
		out.Theme = &th
	}
	return out
}

// DefaultTheme is used by renderers when a deck carries no theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:    "#1F3A5F",
		Secondary:  "#4F6D8F",
		Background: "#FFFFFF",
		Accent:     "#E07A2F",
		Text: ThemeText{
			Heading: "#1A1A1A",
			Body:    "#333333",
			Muted:   "#777777",
		},
	}
}
