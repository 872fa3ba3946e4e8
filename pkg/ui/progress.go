package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single-line progress bar for an archive
// run. In verbose mode it prints one line per document instead, so the
// bar does not fight with debug logging on the same terminal.
type ProgressDisplay struct {
	mu            sync.Mutex
	site          string
	totalDocs     int
	archived      int
	skipped       int
	failed        int
	assetsFetched int
	assetsReused  int
	startTime     time.Time
	verbose       bool
}

// NewProgressDisplay creates a progress display for one site's run
func NewProgressDisplay(site string, totalDocs int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		site:      site,
		totalDocs: totalDocs,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// DocumentDone records one freshly archived document
func (p *ProgressDisplay) DocumentDone(url string, assets, reused int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.archived++
	p.assetsFetched += assets
	p.assetsReused += reused

	if p.verbose {
		fmt.Printf("%s %s • %d assets\n", Green("✓"), lastSegment(url), assets)
		return
	}
	p.printProgress(url)
}

// DocumentSkipped records a document already archived by an earlier run
func (p *ProgressDisplay) DocumentSkipped(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++

	if p.verbose {
		fmt.Printf("%s %s\n", Dim("= already archived"), lastSegment(url))
		return
	}
	p.printProgress("")
}

// DocumentFailed records a document left pending for the next run
func (p *ProgressDisplay) DocumentFailed(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++

	if p.verbose {
		fmt.Printf("%s %s - %v\n", Red("✗"), lastSegment(url), err)
		return
	}
	p.printProgress("")
}

// printProgress redraws the progress line. Callers hold p.mu.
func (p *ProgressDisplay) printProgress(current string) {
	done := p.archived + p.skipped + p.failed
	elapsed := time.Since(p.startTime)
	rate := float64(p.archived) / elapsed.Minutes()

	var progress float64
	if p.totalDocs > 0 {
		progress = float64(done) / float64(p.totalDocs)
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("\r%s [%s] %d/%d • %.1f/min • %d assets • %s",
		Cyan(p.site),
		bar,
		done,
		p.totalDocs,
		rate,
		p.assetsFetched,
		p.calculateETA(done),
	)

	if current != "" {
		line += fmt.Sprintf(" • %s", lastSegment(current))
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}

	// Clear line and print
	fmt.Printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete ends the display and prints the run summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	if !p.verbose {
		fmt.Println()
	}
	fmt.Printf("\n%s Archived %d documents from %s\n",
		Green("✓"),
		p.archived,
		p.site,
	)
	fmt.Printf("  %s %d assets fetched, %d reused, in %s\n",
		Dim("•"),
		p.assetsFetched,
		p.assetsReused,
		formatDuration(elapsed),
	)

	if p.skipped > 0 {
		fmt.Printf("  %s %d documents kept from earlier runs\n", Dim("•"), p.skipped)
	}
	if p.failed > 0 {
		fmt.Printf("  %s %d documents failed, rerun to retry them\n", Dim("•"), p.failed)
	}
}

// calculateETA estimates time remaining. Callers hold p.mu.
func (p *ProgressDisplay) calculateETA(done int) string {
	if done == 0 {
		return "calculating..."
	}

	remaining := p.totalDocs - done
	elapsed := time.Since(p.startTime)
	rate := float64(done) / elapsed.Seconds()

	if rate == 0 {
		return "calculating..."
	}

	eta := time.Duration(float64(remaining)/rate) * time.Second
	return formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// lastSegment keeps the final path segment of a URL, which for blog
// permalinks is the post slug
func lastSegment(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i+1 < len(trimmed) {
		return trimmed[i+1:]
	}
	return rawURL
}
