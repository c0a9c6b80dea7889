package session

import "statbridge/datatable"

// host exposes the session to forms. Data queries are read-only.
type host struct {
	session *Session
}

func (h *host) RunScript(formPath, script string) {
	h.session.runScript(formPath, script)
}

func (h *host) VariableNames() []string {
	return h.session.provider.VariableNames()
}

func (h *host) VariableType(name string) datatable.Classification {
	return h.session.provider.VariableType(name)
}

func (h *host) Labels(name string) []string {
	return h.session.provider.Labels(name)
}

func (h *host) Values(name string) []string {
	return h.session.provider.Values(name)
}

func (h *host) RowCount() int {
	return h.session.provider.RowCount()
}
