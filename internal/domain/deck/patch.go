package deck

// SlidePatch is a partial update. Nil fields are left unchanged; ClearImageURL sets the
// image to null and wins over ImageURL.
type SlidePatch struct {
	Title              *string
	Body               *string
	Notes              *string
	AIImageDescription *string
	ImageURL           *string
	ClearImageURL      bool
}

// WithImage is the patch the assembler applies once a slide's image is resolved.
func WithImage(ref string) SlidePatch {
	return SlidePatch{ImageURL: &ref}
}

// ApplyPatch returns a copy of s with p applied. s is not modified.
func ApplyPatch(s Slide, p SlidePatch) Slide {
	out := s.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Body != nil {
		out.Body = *p.Body
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.AIImageDescription != nil {
		out.AIImageDescription = *p.AIImageDescription
	}
	switch {
	case p.ClearImageURL:
		out.ImageURL = nil
	case p.ImageURL != nil:
		v := *p.ImageURL
		out.ImageURL = &v
	}
	return out
}
