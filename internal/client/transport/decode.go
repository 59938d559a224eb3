package transport

import (
	"bytes"
	"encoding/json"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

const msgMalformed = "malformed server response"

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// outcome treats a missing success flag as success: only 2xx bodies reach here.
func (e envelope) outcome() models.Outcome {
	ok := true
	if e.Success != nil {
		ok = *e.Success
	}
	return models.Outcome{Success: ok, Message: e.Message}
}

// unwrap decodes body into out. An object carrying "data" together with
// "success" or "message" is an envelope and only its data is decoded;
// anything else is the payload itself.
func unwrap(body []byte, out any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err == nil {
		data, hasData := probe["data"]
		_, hasSuccess := probe["success"]
		_, hasMessage := probe["message"]
		if hasData && (hasSuccess || hasMessage) {
			return decodeJSON(data, out)
		}
	}
	return decodeJSON(body, out)
}

func decodeJSON(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &common.Error{Kind: common.KindTransport, Message: msgMalformed, Err: err}
	}
	return nil
}

// accessToken extracts an optional "access" field, top-level or enveloped.
func accessToken(body []byte) string {
	var out struct {
		Access string `json:"access"`
	}
	if err := decodeJSON(body, &out); err != nil {
		return ""
	}
	if out.Access != "" {
		return out.Access
	}
	_ = unwrap(body, &out)
	return out.Access
}

// serverMessage picks the human-readable message out of an error body.
func serverMessage(body []byte) string {
	var out struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &out) != nil {
		return ""
	}
	switch {
	case out.Message != "":
		return out.Message
	case out.Detail != "":
		return out.Detail
	default:
		return out.Error
	}
}
