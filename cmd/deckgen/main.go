package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/deckforge-backend/internal/app"
	domain "github.com/yungbote/deckforge-backend/internal/domain/deck"
	"github.com/yungbote/deckforge-backend/internal/platform/shutdown"
)

func main() {
	var (
		topic       string
		description string
		slides      int
		duration    int
		style       string
		title       string
		outDir      string
		share       bool
		store       bool
	)
	flag.StringVar(&topic, "topic", "", "presentation topic (required)")
	flag.StringVar(&description, "description", "", "what the deck should cover (required)")
	flag.IntVar(&slides, "slides", 5, "number of slides (1-10)")
	flag.IntVar(&duration, "duration", 10, "talk length in minutes (1-30)")
	flag.StringVar(&style, "style", string(domain.StyleProfessional), "professional, casual or academic")
	flag.StringVar(&title, "title", "", "export title (defaults to the generated title)")
	flag.StringVar(&outDir, "out", "", "directory for the .pptx file (defaults to export.dir)")
	flag.BoolVar(&share, "share", false, "print a share link for the deck")
	flag.BoolVar(&store, "store", false, "persist the deck and print its id")
	flag.Parse()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, domain.GenerationRequest{
		Topic:          topic,
		Description:    description,
		NumberOfSlides: slides,
		Duration:       duration,
		Style:          domain.Style(strings.ToLower(strings.TrimSpace(style))),
	}, title, outDir, share, store); err != nil {
		fmt.Printf("deckgen: %v\n", err)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, req domain.GenerationRequest, title, outDir string, share, store bool) error {
	fmt.Printf("Generating %d slides on %q...\n", req.NumberOfSlides, req.Topic)
	p, err := a.Deck.Generate(ctx, req)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			for _, v := range ve.Violations {
				fmt.Printf("  %s: %s\n", v.Field, v.Message)
			}
		}
		return err
	}
	fmt.Printf("Generated %q\n", p.Title)

	if outDir == "" {
		outDir = a.Config.Export.Dir
	}
	path, err := a.Deck.ExportToDir(ctx, outDir, *p, title, func(status string, current, total int) {
		fmt.Printf("  [%s] %d/%d\n", status, current, total)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)

	if share {
		link, err := a.Deck.Share(ctx, *p)
		if err != nil {
			return err
		}
		fmt.Printf("Share link: %s\n", link.URL)
	}
	if store {
		res, err := a.Deck.Store(ctx, *p)
		if err != nil {
			return err
		}
		fmt.Printf("Stored as %s\n", res.ID)
		if res.Degraded {
			fmt.Printf("  %s\n", res.Notice)
		}
	}
	return nil
}
