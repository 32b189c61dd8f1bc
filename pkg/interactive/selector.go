package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kadirbelkuyu/schemasync/internal/profiles"
)

type ProfileSelector struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewProfileSelector(r io.Reader, w io.Writer) *ProfileSelector {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &ProfileSelector{
		reader: bufio.NewReader(r),
		out:    w,
	}
}

func (ps *ProfileSelector) SelectProfile(list []profiles.Profile) (*profiles.Profile, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("no profiles found")
	}

	fmt.Fprintln(ps.out)
	fmt.Fprintln(ps.out, "Available profiles:")
	fmt.Fprintln(ps.out, strings.Repeat("=", 80))
	fmt.Fprintf(ps.out, "%-4s %-24s %-25s %-25s\n", "No", "Profile", "Database 1", "Database 2")
	fmt.Fprintln(ps.out, strings.Repeat("-", 80))
	for i, p := range list {
		fmt.Fprintf(ps.out, "%-4d %-24s %-25s %-25s\n", i+1, p.Name, truncate(p.DB1, 25), truncate(p.DB2, 25))
	}
	fmt.Fprintln(ps.out, strings.Repeat("=", 80))

	for {
		fmt.Fprintf(ps.out, "\nSelect the profile number (1-%d): ", len(list))

		input, err := ps.reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(input) == "") {
			return nil, fmt.Errorf("unable to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			fmt.Fprintln(ps.out, "Please enter a number.")
			continue
		}

		choice, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintln(ps.out, "Please enter a valid number.")
			continue
		}
		if choice < 1 || choice > len(list) {
			fmt.Fprintf(ps.out, "Please select a number between 1 and %d.\n", len(list))
			continue
		}

		selected := &list[choice-1]
		fmt.Fprintf(ps.out, "\nSelected profile: %s\n", selected.Name)
		return selected, nil
	}
}

func (ps *ProfileSelector) ConfirmAction(action, target string) bool {
	fmt.Fprintf(ps.out, "\nConfirm running %s for %s (y/N): ", action, target)

	input, err := ps.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}

	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func truncate(value string, width int) string {
	if len(value) <= width {
		return value
	}
	return value[:width-3] + "..."
}
