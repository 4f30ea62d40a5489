package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/pkg/rag"
	"github.com/xhad/yatra/pkg/review"
	"github.com/xhad/yatra/pkg/trip"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// spin keeps a spinner moving until the returned stop func is called.
func spin(description string) func() {
	bar := getSpinner(description)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		bar.Finish()
	}
}

// prompter reads answers from the terminal.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
	ask     func(format string, a ...interface{})
}

func (p *prompter) line(question, fallback string) (string, bool) {
	if fallback != "" {
		p.ask("%s [%s]: ", question, fallback)
	} else {
		p.ask("%s: ", question)
	}
	if !p.scanner.Scan() {
		return "", false
	}
	answer := strings.TrimSpace(p.scanner.Text())
	if answer == "" {
		answer = fallback
	}
	return answer, true
}

func runCLI(ctx context.Context, a *app) error {
	session, err := a.newSession(uuid.NewString())
	if err != nil {
		return err
	}
	defer session.Close()

	gen, err := rag.NewGenerator(session, a.chat, rag.GeneratorConfig{TopK: a.config.Index.TopK, Logger: a.log})
	if err != nil {
		return err
	}

	p := &prompter{
		scanner: bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
		ask:     color.New(color.FgGreen).PrintfFunc(),
	}
	answer := color.New(color.FgCyan).PrintfFunc()

	color.Cyan("\nUttarakhand Trip Planner (type 'exit' to quit, 'review' to leave a review)")

	for ctx.Err() == nil {
		fmt.Fprintln(p.out)
		destination, ok := p.line("Destination", "")
		if !ok || strings.EqualFold(destination, "exit") {
			break
		}
		if strings.EqualFold(destination, "review") {
			if !collectReview(p, a.reviews) {
				break
			}
			continue
		}

		query, ok := readQuery(p, destination)
		if !ok {
			break
		}
		if query == nil {
			continue
		}

		description := "Processing your request..."
		if session.Builds() == 0 {
			description = "Setting up the environment..."
		}
		stop := spin(description)
		it, err := gen.Answer(ctx, *query)
		stop()

		if err != nil {
			color.Red("%v\n", err)
			continue
		}

		answer("\n%s\n", it.Text)
		color.Green("\nResponse received in %.2f seconds", it.Elapsed.Seconds())
		color.Blue("Maps: %s", it.MapsURL)

		if save, ok := p.line("Save plan to "+trip.DownloadName(query.Destination)+"? (y/N)", "n"); ok && strings.EqualFold(save, "y") {
			if err := os.WriteFile(trip.DownloadName(query.Destination), []byte(it.Text), 0o644); err != nil {
				color.Red("Failed to save plan: %v\n", err)
			} else {
				color.Green("Saved %s", trip.DownloadName(query.Destination))
			}
		}
	}

	return nil
}

// readQuery asks for dates and budget. It returns a nil query when the input
// was rejected and false when input ended.
func readQuery(p *prompter, destination string) (*models.Query, bool) {
	today := time.Now()
	defStart, defEnd := trip.DefaultRange(today)

	startStr, ok := p.line("Start date (YYYY-MM-DD)", defStart.Format(trip.DateLayout))
	if !ok {
		return nil, false
	}
	endStr, ok := p.line("End date (YYYY-MM-DD)", defEnd.Format(trip.DateLayout))
	if !ok {
		return nil, false
	}
	budgetStr, ok := p.line("Budget in INR (1000-10000, steps of 500)", strconv.Itoa(trip.BudgetDefault))
	if !ok {
		return nil, false
	}

	start, err := trip.ParseDate(startStr)
	if err != nil {
		color.Red("⚠ %v", err)
		return nil, true
	}
	end, err := trip.ParseDate(endStr)
	if err != nil {
		color.Red("⚠ %v", err)
		return nil, true
	}
	budget, err := strconv.Atoi(budgetStr)
	if err != nil {
		color.Red("⚠ budget must be a number")
		return nil, true
	}

	query, err := trip.NewQuery(destination, start, end, budget, today)
	if err != nil {
		color.Red("⚠ %v", err)
		return nil, true
	}

	color.White("Destination: %s", query.Destination)
	color.White("Number of Days: %d", query.DayCount)
	color.White("Selected Budget: ₹%d", query.Budget)
	return &query, true
}

func collectReview(p *prompter, reviews *review.JSONStore) bool {
	name, ok := p.line("Your Name", "")
	if !ok {
		return false
	}
	ratingStr, ok := p.line("Rating (1-5)", "5")
	if !ok {
		return false
	}
	text, ok := p.line("Your Review", "")
	if !ok {
		return false
	}

	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		rating = 0
	}
	if err := reviews.Save(models.Review{Name: name, Rating: rating, Review: text}); err != nil {
		color.Red("%v", err)
		return true
	}
	color.Green("Thank you for your review! 🎉")

	for _, r := range reviews.Load() {
		fmt.Fprintf(p.out, "%s %s\n  %q\n", color.GreenString(r.Name), strings.Repeat("⭐", r.Rating), r.Review)
	}
	return true
}
