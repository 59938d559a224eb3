// Package flagx contains helpers for pre-parsing a subset of command-line
// flags before the main flag set is built.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the flags listed in allowed, together with their
// values. Both "-c file" and "-c=file" forms are recognised. A token that
// starts with '-' is never taken as a value.
func FilterArgs(args []string, allowed []string) []string {
	set := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		set[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if set[name] {
				out = append(out, arg)
			}
			continue
		}

		if !set[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigPath extracts the JSON config file path given with -c or -config.
// Every other argument is ignored, so it is safe to call before the real
// flag set is parsed. It returns "" when neither flag is present.
func ConfigPath(args []string) string {
	return lookupString(args, "config", "c", "path to JSON config file")
}

// EnvFilePath extracts the dotenv file path given with -e or -env-file.
func EnvFilePath(args []string) string {
	return lookupString(args, "env-file", "e", "path to .env file")
}

func lookupString(args []string, long, short, usage string) string {
	var v string

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&v, long, "", usage)
	fs.StringVar(&v, short, "", usage)
	_ = fs.Parse(FilterArgs(args, []string{"-" + short, "-" + long, "--" + short, "--" + long}))

	return v
}
