package cmd

import (
	"flag"
	"regexp"
	"testing"

	"github.com/etnz/delta/docs"
	"github.com/google/subcommands"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// TestTopics_Commands checks that the commands used in the documentation exist.
func TestTopics_Commands(t *testing.T) {
	commander := subcommands.NewCommander(flag.NewFlagSet("dtc", flag.ContinueOnError), "dtc")
	commander.Register(commander.HelpCommand(), "")
	Register(commander)
	registered := make(map[string]bool)
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		registered[c.Name()] = true
	})

	content, err := docs.Topics(docs.Index, "*")
	if err != nil {
		t.Fatalf("Topics() unexpected error: %v", err)
	}
	src := []byte(content)
	usage := regexp.MustCompile(`dtc ([a-z]+)`)

	var used []string
	root := goldmark.DefaultParser().Parse(text.NewReader(src))
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.CodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					if m := usage.FindSubmatch(t.Segment.Value(src)); m != nil {
						used = append(used, string(m[1]))
					}
				}
			}
		case *ast.FencedCodeBlock:
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				if m := usage.FindSubmatch(line.Value(src)); m != nil {
					used = append(used, string(m[1]))
				}
			}
		}
		return ast.WalkContinue, nil
	})

	if len(used) == 0 {
		t.Fatal("no command found in the documentation")
	}
	for _, name := range used {
		if !registered[name] {
			t.Errorf("documentation uses 'dtc %s', which is not a command", name)
		}
	}
}
