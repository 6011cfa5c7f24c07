// Command cinder is an interactive interpreter for the cinder
// scripting engine: a REPL, a one-shot expression evaluator and a
// script file runner over one persistent session.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cinder/engine"
	"cinder/trace"
)

func main() {
	configPath := flag.String("config", "cinder.toml", "Config file path")
	evalExpr := flag.String("e", "", "Evaluate one expression and exit")
	noBootstrap := flag.Bool("no-bootstrap", false, "Start without the baseline declarations")
	traceEnabled := flag.Bool("trace", false, "Enable pcode execution tracing")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob, e.g. 'fact' or 'Point::*')")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	configRequired := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configRequired = true
		}
	})
	cfg, err := LoadConfig(*configPath, configRequired)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *noBootstrap {
		cfg.Session.Bootstrap = false
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))

	session, err := engine.Open(engine.Options{
		Bootstrap:   cfg.Session.Bootstrap,
		Logger:      logger,
		IncludePath: cfg.Session.IncludePath,
		StepLimit:   cfg.Session.StepLimit,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer session.Close()

	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			filters = strings.Split(*traceFilter, ",")
			for i := range filters {
				filters[i] = strings.TrimSpace(filters[i])
			}
		}
		session.SetTracer(trace.New(true, filters, os.Stderr))
	}

	for _, path := range cfg.Session.Preload {
		if err := session.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "preload %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	switch {
	case *evalExpr != "":
		result, err := session.Eval(*evalExpr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		session.Flush()
		if result != "" {
			fmt.Println(result)
		}

	case flag.NArg() > 0:
		for _, path := range flag.Args() {
			if err := session.Load(path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
		session.Flush()

	default:
		repl(session, cfg.Repl)
	}
}

// repl reads fragments line by line, submitting each once its braces
// balance, and prints results the interactive way.
func repl(session *engine.Session, cfg ReplConfig) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending strings.Builder
	depth := 0
	for {
		if pending.Len() == 0 {
			fmt.Print(cfg.Prompt)
		} else {
			fmt.Print(strings.Repeat(".", len(cfg.Prompt)))
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if pending.Len() == 0 && strings.TrimSpace(line) == "" {
			continue
		}
		pending.WriteString(line)
		pending.WriteByte('\n')
		depth += braceDelta(line)
		if depth > 0 {
			continue
		}
		depth = 0

		err := session.Exec(pending.String())
		pending.Reset()
		session.Flush()
		if err != nil {
			fmt.Println(err)
			continue
		}
		result := session.Result()
		if !cfg.Verbose {
			result = session.Value()
		}
		if result != "" {
			fmt.Println(result)
		}
	}
}

// braceDelta counts net brace nesting, skipping string and char
// literals so "}" inside quotes does not end a fragment early.
func braceDelta(line string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return depth
			}
		}
	}
	return depth
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
