package options

import (
	"encoding/json"
	"errors"
	"strings"

	"statbridge/forms"
)

// Request keys understood by CheckOptions.
const (
	FormFileKey       = "formFile"
	LegacyFormFileKey = "qmlFile"
)

// Messages reported in the CheckOptions envelope.
const (
	msgFileNotFound = "File NOT found"
	msgNotCreated   = "Item not created"
)

// FormSource resolves form paths to compiled forms. *forms.Cache
// implements it.
type FormSource interface {
	Form(path string) (*forms.Form, error)
}

type checkResponse struct {
	Options json.RawMessage `json:"options"`
	Error   string          `json:"error,omitempty"`
}

// CheckOptions answers a JSON request {"formFile": path, "options": {...}}
// with {"options": {...}} and, when anything went wrong, an "error" string
// holding one message per line. It never fails; problems end up in the
// envelope.
func CheckOptions(source FormSource, request []byte) []byte {
	var (
		messages []string
		options  json.RawMessage = []byte("{}")
	)

	req, err := decodeObject(request)
	if err != nil {
		messages = append(messages, "Invalid request: "+err.Error())
		return encodeResponse(options, messages)
	}

	path := requestPath(req)
	form, err := source.Form(path)
	switch {
	case err == nil:
	case errors.Is(err, forms.ErrArtifactNotFound):
		messages = append(messages, msgFileNotFound)
	default:
		var ce *forms.CompileError
		if errors.As(err, &ce) {
			for _, d := range ce.Diagnostics {
				messages = append(messages, d.String())
			}
		} else {
			messages = append(messages, err.Error())
		}
		messages = append(messages, msgNotCreated)
	}

	if form != nil {
		raw, ok := req[NestedKey]
		if !ok {
			raw = []byte("{}")
		}
		parsed, err := ParseOptions(form, raw)
		if err != nil {
			messages = append(messages, err.Error())
		} else {
			options = parsed
		}
	}

	return encodeResponse(options, messages)
}

func requestPath(req map[string]json.RawMessage) string {
	for _, key := range []string{FormFileKey, LegacyFormFileKey} {
		var s string
		if v, ok := req[key]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func encodeResponse(options json.RawMessage, messages []string) []byte {
	b, err := json.Marshal(checkResponse{Options: options, Error: strings.Join(messages, "\n")})
	if err != nil {
		// options always holds validated JSON
		return []byte(`{"options":{},"error":"` + msgNotCreated + `"}`)
	}
	return b
}
