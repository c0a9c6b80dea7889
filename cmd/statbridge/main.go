// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command statbridge loads data files, checks analysis options against
// compiled forms and writes form wrappers.
//
// Usage:
//
//	statbridge columns [-filter query] <data-file>
//	statbridge check -form <form> [-data <data-file>] [-options <json>]
//	statbridge wrapper -form <form> -module <dir> -analysis <name> [-data <data-file>]
//	statbridge export [-format csv|json|parquet] [-filter query] <data-file> <out-file>
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"statbridge/internal/config"
	"statbridge/internal/logging"
	"statbridge/session"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	name  string
	usage string
	run   func(app *app, args []string) error
}

var commands = []command{
	{"columns", "list the columns of a data file", runColumns},
	{"check", "run options through a form", runCheck},
	{"wrapper", "generate and write a form's wrapper", runWrapper},
	{"export", "convert a data file to csv, json or parquet", runExport},
}

// app carries what every command needs.
type app struct {
	logger  *slog.Logger
	session *session.Session
	stdout  io.Writer
	stderr  io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "statbridge: unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "statbridge: %v\n", err)
		return 1
	}
	logger, closeLog, err := logging.NewWithWriter(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "statbridge: %v\n", err)
		return 1
	}
	defer closeLog()

	s := session.New(session.Options{
		Policy:     cfg.Policy(),
		GoPath:     cfg.Forms.PluginDir,
		Extension:  cfg.Forms.Extension,
		Layout:     cfg.Layout(),
		Runner:     &logRunner{logger: logger},
		Registerer: prometheus.NewRegistry(),
		Logger:     logger,
	})
	defer s.Close()

	a := &app{logger: logger, session: s, stdout: stdout, stderr: stderr}
	if err := cmd.run(a, args[1:]); err != nil {
		fmt.Fprintf(stderr, "statbridge %s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: statbridge <command> [flags] [args]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
}

// logRunner has no script host to talk to; it records requests in the log.
type logRunner struct {
	logger *slog.Logger
}

func (r *logRunner) RunScript(req session.ScriptRequest) {
	r.logger.Info("Script requested", slog.String("form", req.FormPath), slog.String("script", req.Script))
}
