package common

import (
	"fmt"
	"strings"
	"time"

	"vote-escrow-go/internal/models"
)

// DefaultWidth is the separator width of CLI reports
const DefaultWidth = 80

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ShortId truncates token ids and handles for table output
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// FormatRemaining renders a countdown such as a warmup or queue wait, rounded to the minute
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "done"
	}
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	return b.String()
}

// RequirementLine renders one prerequisite as a single status line
func RequirementLine(name string, r models.Requirement) string {
	marker := "…"
	switch r.State {
	case models.RequirementMet, models.RequirementNotRequired:
		marker = "✓"
	case models.RequirementUnmet:
		marker = "✗"
	case models.RequirementUnavailable:
		marker = "!"
	}
	line := fmt.Sprintf("%s %-13s %s", marker, name, r.State)
	if r.Detail != "" {
		line += " (" + r.Detail + ")"
	}
	return line
}
