// Package schema holds the validation contracts for decks and generation requests.
// All functions are pure and return normalized copies of their input.
package schema

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
)

var (
	hexColorRE = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	dataURIRE  = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=\r\n]+$`)
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			return hexColorRE.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
			return IsImageRef(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsImageRef reports whether s is an absolute http(s) URL or a base64 data:image URI.
func IsImageRef(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "data:") {
		return dataURIRE.MatchString(s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateRequest checks a generation request. An empty style defaults to professional.
func ValidateRequest(in deck.GenerationRequest) (deck.GenerationRequest, error) {
	out := in
	out.Style = deck.Style(strings.ToLower(strings.TrimSpace(string(in.Style))))
	if out.Style == "" {
		out.Style = deck.StyleProfessional
	}
	if err := check(&out); err != nil {
		return deck.GenerationRequest{}, err
	}
	return out, nil
}

// ValidatePresentation checks a whole deck, including its theme when present.
// Blank image references are normalized to nil.
func ValidatePresentation(in deck.Presentation) (*deck.Presentation, error) {
	out := in.Clone()
	for i := range out.Slides {
		if out.Slides[i].ImageURL != nil && strings.TrimSpace(*out.Slides[i].ImageURL) == "" {
			out.Slides[i].ImageURL = nil
		}
	}
	if err := check(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateSlide checks a single slide in isolation.
func ValidateSlide(in deck.Slide) (deck.Slide, error) {
	out := in.Clone()
	if out.ImageURL != nil && strings.TrimSpace(*out.ImageURL) == "" {
		out.ImageURL = nil
	}
	if err := check(&out); err != nil {
		return deck.Slide{}, err
	}
	return out, nil
}

func ValidateTheme(in deck.Theme) (deck.Theme, error) {
	if err := check(&in); err != nil {
		return deck.Theme{}, err
	}
	return in, nil
}

func check(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &deck.ValidationError{Violations: []deck.Violation{{Rule: "invalid", Message: err.Error()}}}
	}
	out := &deck.ValidationError{Violations: make([]deck.Violation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, deck.Violation{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the root type name: "Presentation.slides[0].title" -> "slides[0].title".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "nonblank":
		return "is required"
	case "hexcolor6":
		return "must be a #RRGGBB color"
	case "imageref":
		return "must be an absolute http(s) URL or a data:image base64 URI"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
