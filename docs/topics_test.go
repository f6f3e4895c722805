package docs

import (
	"bufio"
	"regexp"
	"slices"
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	// every topic is listed in the index, and every listed topic exists.
	index, err := Topic(Index)
	if err != nil {
		t.Fatalf("Topic(%q) unexpected error: %v", Index, err)
	}
	var listed []string
	item := regexp.MustCompile(`^\*\s+([^:]+):`)
	scanner := bufio.NewScanner(strings.NewReader(index))
	for scanner.Scan() {
		if m := item.FindStringSubmatch(scanner.Text()); m != nil {
			listed = append(listed, strings.TrimSpace(m[1]))
		}
	}
	slices.Sort(listed)

	all, err := List()
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if !slices.Equal(listed, all) {
		t.Errorf("topics listed in %s.md got %v, want %v", Index, listed, all)
	}
}

func TestTopics_All(t *testing.T) {
	content, err := Topics("*")
	if err != nil {
		t.Fatalf("Topics(*) unexpected error: %v", err)
	}
	for _, title := range []string{"# Session", "# Feeds", "# Wallet", "# Configuration"} {
		if !strings.Contains(content, title) {
			t.Errorf("Topics(*) has no %q", title)
		}
	}
	if _, err := Topic("nope"); err == nil {
		t.Errorf("Topic(nope) expected an error")
	}
}
