package schema

import (
	"errors"
	"testing"

	"github.com/yungbote/deckforge-backend/internal/domain/deck"
)

func strptr(s string) *string { return &s }

func validRequest() deck.GenerationRequest {
	return deck.GenerationRequest{
		Topic:          "Mars",
		Description:    "Colonization challenges",
		NumberOfSlides: 3,
		Duration:       10,
		Style:          deck.StyleProfessional,
	}
}

func violationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *deck.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *deck.ValidationError got=%T (%v)", err, err)
	}
	out := map[string]string{}
	for _, v := range ve.Violations {
		out[v.Field] = v.Rule
	}
	return out
}

func TestValidateRequestBounds(t *testing.T) {
	cases := []struct {
		name   string
		slides int
		dur    int
		ok     bool
	}{
		{"min slides", 1, 10, true},
		{"max slides", 10, 10, true},
		{"zero slides", 0, 10, false},
		{"eleven slides", 11, 10, false},
		{"min duration", 3, 1, true},
		{"max duration", 3, 30, true},
		{"zero duration", 3, 0, false},
		{"long duration", 3, 31, false},
	}
	for _, tc := range cases {
		req := validRequest()
		req.NumberOfSlides = tc.slides
		req.Duration = tc.dur
		_, err := ValidateRequest(req)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: want ok=%v got err=%v", tc.name, tc.ok, err)
		}
	}
}

func TestValidateRequestReportsEveryViolation(t *testing.T) {
	req := deck.GenerationRequest{Topic: "  ", Description: "", NumberOfSlides: 0, Duration: 99, Style: "loud"}
	_, err := ValidateRequest(req)
	fields := violationFields(t, err)
	for _, f := range []string{"topic", "description", "numberOfSlides", "duration", "style"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("missing violation for %q in %v", f, fields)
		}
	}
}

func TestValidateRequestDefaultsStyle(t *testing.T) {
	req := validRequest()
	req.Style = ""
	got, err := ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest: %v", err)
	}
	if got.Style != deck.StyleProfessional {
		t.Fatalf("style: want=%q got=%q", deck.StyleProfessional, got.Style)
	}
	req.Style = " Casual "
	got, err = ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest: %v", err)
	}
	if got.Style != deck.StyleCasual {
		t.Fatalf("style: want=%q got=%q", deck.StyleCasual, got.Style)
	}
}

func TestValidatePresentation(t *testing.T) {
	good := deck.Presentation{
		Title: "Mars",
		Slides: []deck.Slide{
			{Title: "One", Body: "b", ImageURL: strptr("https://images.example.com/a.png")},
			{Title: "Two", Body: "b", ImageURL: strptr("data:image/png;base64,iVBORw0KGgo=")},
			{Title: "Three", Body: "b", ImageURL: strptr("   ")},
		},
	}
	out, err := ValidatePresentation(good)
	if err != nil {
		t.Fatalf("ValidatePresentation: %v", err)
	}
	if out.Slides[2].ImageURL != nil {
		t.Fatalf("blank imageUrl should normalize to nil")
	}
	if good.Slides[2].ImageURL == nil {
		t.Fatalf("input was mutated")
	}

	bad := deck.Presentation{
		Title: "",
		Slides: []deck.Slide{
			{Title: "ok", Body: "ok"},
			{Title: "", Body: "b", ImageURL: strptr("not a url")},
		},
	}
	_, err = ValidatePresentation(bad)
	fields := violationFields(t, err)
	for _, f := range []string{"title", "slides[1].title", "slides[1].imageUrl"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("missing violation for %q in %v", f, fields)
		}
	}
}

func TestValidatePresentationRequiresSlides(t *testing.T) {
	_, err := ValidatePresentation(deck.Presentation{Title: "Empty"})
	fields := violationFields(t, err)
	if fields["slides"] != "min" {
		t.Fatalf("want slides/min violation got %v", fields)
	}
}

func TestValidateTheme(t *testing.T) {
	th := deck.DefaultTheme()
	if _, err := ValidateTheme(th); err != nil {
		t.Fatalf("default theme invalid: %v", err)
	}
	th.Accent = "#abc"
	th.Text.Muted = "777777"
	fields := violationFields(t, func() error { _, err := ValidateTheme(th); return err }())
	if _, ok := fields["accent"]; !ok {
		t.Fatalf("missing accent violation: %v", fields)
	}
	if _, ok := fields["text.muted"]; !ok {
		t.Fatalf("missing text.muted violation: %v", fields)
	}
}

func TestValidatePresentationChecksTheme(t *testing.T) {
	th := deck.DefaultTheme()
	th.Primary = "red"
	p := deck.Presentation{Title: "T", Slides: []deck.Slide{{Title: "a", Body: "b"}}, Theme: &th}
	fields := violationFields(t, func() error { _, err := ValidatePresentation(p); return err }())
	if _, ok := fields["theme.primary"]; !ok {
		t.Fatalf("missing theme.primary violation: %v", fields)
	}
}

func TestIsImageRef(t *testing.T) {
	cases := map[string]bool{
		"https://a.example/x.png":     true,
		"http://a.example/x.png":      true,
		"ftp://a.example/x.png":       false,
		"/relative/x.png":             false,
		"data:image/jpeg;base64,AAAA": true,
		"data:text/plain;base64,AAAA": false,
		"data:image/png;base64,":      false,
		"":                            false,
	}
	for in, want := range cases {
		if got := IsImageRef(in); got != want {
			t.Fatalf("IsImageRef(%q): want=%v got=%v", in, want, got)
		}
	}
}
