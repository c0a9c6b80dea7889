package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"statbridge/datatable/filter"
	"statbridge/loader"
)

// dataFlags are shared by the commands that read a data file.
type dataFlags struct {
	timeout int
	filters queryList
	any     bool
}

func (d *dataFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&d.timeout, "timeout", defaultTimeoutSeconds, "data file load timeout in seconds")
	fs.Var(&d.filters, "filter", "row filter, e.g. \"age > 30 AND arm = b\"; repeatable")
	fs.BoolVar(&d.any, "any", false, "keep rows passing any -filter instead of all")
}

// queryList collects repeated -filter flags.
type queryList []string

func (q *queryList) String() string { return strings.Join(*q, "; ") }

func (q *queryList) Set(v string) error {
	*q = append(*q, v)
	return nil
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// load replaces the session data set with path and installs the filter.
func (a *app) load(path string, d dataFlags) error {
	ctx, cancel := createTimeoutContext(d.timeout)
	defer cancel()

	report, err := a.session.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	for _, diag := range report.Diagnostics {
		a.logger.Warn("Column imported blank", slog.String("column", diag.Name), slog.String("reason", diag.Message))
	}
	a.logger.Debug("Data file loaded", slog.String("path", path), slog.Int("rows", report.Rows), slog.Int("columns", report.Columns))

	logic := filter.LogicAND
	if d.any {
		logic = filter.LogicOR
	}
	return a.session.Provider().SetFilters(logic, d.filters...)
}

func runColumns(a *app, args []string) error {
	fs := newFlagSet(a, "columns")
	var d dataFlags
	d.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one data file")
	}
	if err := a.load(fs.Arg(0), d); err != nil {
		return err
	}

	ds, err := a.session.Provider().FilteredDataSet()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tTYPE\tLEVELS\tMISSING")
	for i := 0; i < ds.ColumnCount(); i++ {
		c := ds.Column(i)
		if c == nil {
			continue
		}
		missing := 0
		for r := 0; r < c.Len(); r++ {
			if c.IsMissing(r) {
				missing++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", c.Name(), c.Kind(), c.Classification(), len(c.Levels()), missing)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "rows: %d\n", ds.RowCount())
	return nil
}

func runCheck(a *app, args []string) error {
	fs := newFlagSet(a, "check")
	var d dataFlags
	d.register(fs)
	form := fs.String("form", "", "form file")
	data := fs.String("data", "", "data file the form may query")
	opts := fs.String("options", "{}", "options JSON")
	optsFile := fs.String("options-file", "", "file holding the options JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *form == "" {
		return errors.New("-form is required")
	}
	if *data != "" {
		if err := a.load(*data, d); err != nil {
			return err
		}
	}

	raw := []byte(*opts)
	if *optsFile != "" {
		b, err := os.ReadFile(*optsFile)
		if err != nil {
			return err
		}
		raw = b
	}
	if !json.Valid(raw) {
		return errors.New("options are not valid JSON")
	}

	request, err := json.Marshal(map[string]json.RawMessage{
		"formFile": mustQuote(*form),
		"options":  raw,
	})
	if err != nil {
		return err
	}

	response := a.session.CheckOptions(request)
	fmt.Fprintln(a.stdout, string(response))

	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(response, &env); err == nil && env.Error != "" {
		return errors.New("form reported errors")
	}
	return nil
}

func runWrapper(a *app, args []string) error {
	fs := newFlagSet(a, "wrapper")
	var d dataFlags
	d.register(fs)
	form := fs.String("form", "", "form file")
	module := fs.String("module", "", "module directory")
	analysis := fs.String("analysis", "", "analysis name; defaults to the form's file name")
	data := fs.String("data", "", "data file the form may query")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *form == "" || *module == "" {
		return errors.New("-form and -module are required")
	}
	if *analysis == "" {
		base := filepath.Base(*form)
		*analysis = base[:len(base)-len(filepath.Ext(base))]
	}
	if *data != "" {
		if err := a.load(*data, d); err != nil {
			return err
		}
	}

	path, err := a.session.GenerateWrapper(*form, *module, *analysis)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(a.stdout, "form generated no wrapper")
		return nil
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func runExport(a *app, args []string) error {
	fs := newFlagSet(a, "export")
	var d dataFlags
	d.register(fs)
	format := fs.String("format", "", "output format: csv, json or parquet (default from the output extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("expected a data file and an output file")
	}
	in, out := fs.Arg(0), fs.Arg(1)

	ft := loader.DetectFileType(out)
	if *format != "" {
		ft = loader.ParseFileType(*format)
	}

	if err := a.load(in, d); err != nil {
		return err
	}
	ds, err := a.session.Provider().FilteredDataSet()
	if err != nil {
		return err
	}
	if err := loader.Export(ds, out, ft); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d rows written to %s (%s)\n", ds.RowCount(), out, ft)
	return nil
}

func mustQuote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
