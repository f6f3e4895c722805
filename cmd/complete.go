package cmd

import (
	"flag"
	"io"

	"github.com/etnz/delta"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictors completes the value of flags that share a name across commands.
var flagPredictors = map[string]complete.Predictor{
	"env": predict.Files("*.env"),
	"tf":  timeframes(),
}

func timeframes() predict.Set {
	var s predict.Set
	for _, tf := range delta.Timeframes {
		s = append(s, string(tf))
	}
	return s
}

// flagsOf returns the completion of every flag in fs.
func flagsOf(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		p, ok := flagPredictors[f.Name]
		if !ok {
			p = predict.Nothing
			if b, isBool := f.Value.(interface{ IsBoolFlag() bool }); !isBool || !b.IsBoolFlag() {
				p = predict.Something
			}
		}
		flags[f.Name] = p
	})
	return flags
}

// Completion returns the shell completion of the commands registered in c,
// and of the global flags.
func Completion(c *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flagsOf(flag.CommandLine),
	}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		cmd.SetFlags(fs)
		root.Sub[cmd.Name()] = &complete.Command{Flags: flagsOf(fs)}
	})
	return root
}
