package forms

import (
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"

	"statbridge/datatable"
)

// HostImportPath is the import path under which forms reach the host.
const HostImportPath = "statbridge/host"

// Host is what a form may call back into: the script side effect and
// read-only dataset queries.
type Host interface {
	RunScript(formPath, script string)
	VariableNames() []string
	VariableType(name string) datatable.Classification
	Labels(name string) []string
	Values(name string) []string
	RowCount() int
}

// Binding connects one form to the host. Once detached every call from
// the form becomes a no-op returning zero values, so a retired form can
// no longer reach the session.
type Binding struct {
	mu   sync.RWMutex
	path string
	host Host
}

func newBinding(path string, host Host) *Binding {
	return &Binding{path: path, host: host}
}

// Detach disconnects the form from the host.
func (b *Binding) Detach() {
	b.mu.Lock()
	b.host = nil
	b.mu.Unlock()
}

// Attached reports whether the form still reaches the host.
func (b *Binding) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.host != nil
}

func (b *Binding) current() Host {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.host
}

func (b *Binding) runScript(script string) {
	if h := b.current(); h != nil {
		h.RunScript(b.path, script)
	}
}

func (b *Binding) variableNames() []string {
	if h := b.current(); h != nil {
		return h.VariableNames()
	}
	return nil
}

func (b *Binding) variableType(name string) string {
	if h := b.current(); h != nil {
		return h.VariableType(name).String()
	}
	return datatable.Unknown.String()
}

func (b *Binding) labels(name string) []string {
	if h := b.current(); h != nil {
		return h.Labels(name)
	}
	return nil
}

func (b *Binding) values(name string) []string {
	if h := b.current(); h != nil {
		return h.Values(name)
	}
	return nil
}

func (b *Binding) rowCount() int {
	if h := b.current(); h != nil {
		return h.RowCount()
	}
	return 0
}

// exports returns the symbols of the host package as seen by one form.
func (b *Binding) exports() interp.Exports {
	return interp.Exports{
		HostImportPath + "/host": {
			"RunScript":     reflect.ValueOf(b.runScript),
			"VariableNames": reflect.ValueOf(b.variableNames),
			"VariableType":  reflect.ValueOf(b.variableType),
			"Labels":        reflect.ValueOf(b.labels),
			"Values":        reflect.ValueOf(b.values),
			"RowCount":      reflect.ValueOf(b.rowCount),
		},
	}
}
