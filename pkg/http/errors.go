package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	azerr "github.com/tslight/azure-extras/pkg/errors"
)

var ErrorUnauthorized = &azerr.Error{
	Type:       azerr.Request,
	StatusCode: http.StatusUnauthorized,
	Help: `The request failed authentication

This most likely means your Azure CLI login has expired, or the
service principal in your configuration file is wrong. Run "az login",
or check the client, secret and tenant keys in --config.
`,
	Err: errors.New("request failed authentication"),
}

// armError is the body ARM (and mostly Kudu) sends with a failure.
type armError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"Message"`
}

// DescribeError summarises an error response body for a log line or
// an error message: the ARM error code and message if it is one, else
// the body itself, trimmed.
func DescribeError(body []byte) string {
	var e armError
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Error.Code != "":
			return e.Error.Code + ": " + e.Error.Message
		case e.Message != "":
			return e.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
