package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/appdotbuilder/byteser-ai-chat/internal/core"
)

const maxRequestBytes = 1 << 20

const (
	codeInternal         core.ErrorCode = "INTERNAL"
	codeUnknownProcedure core.ErrorCode = "UNKNOWN_PROCEDURE"
)

type errorBody struct {
	Code    core.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

type resultResponse struct {
	Result any `json:"result"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// procedure is one RPC endpoint: it reads its input from the request and
// returns the value sent back as "result".
type procedure func(r *http.Request) (any, error)

func statusForCode(code core.ErrorCode) int {
	switch code {
	case core.CodeNotFound, codeUnknownProcedure:
		return http.StatusNotFound
	case core.CodeConflict:
		return http.StatusConflict
	case core.CodeInvalidCredentials, core.CodeUnauthorized:
		return http.StatusUnauthorized
	case core.CodeAccountDeactivated:
		return http.StatusForbidden
	case core.CodeWrongAuthMethod, core.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseRequest decodes the JSON body into T and validates it. An empty body
// decodes as an empty object.
func parseRequest[T any](r *http.Request, v *validator.Validate) (T, error) {
	var data T
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBytes))
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("error parsing request body", "error", err)
		return data, &core.Error{Code: core.CodeInvalidInput, Message: "unable to parse request body", Err: err}
	}
	if err := v.Struct(&data); err != nil {
		return data, &core.Error{Code: core.CodeInvalidInput, Message: validationMessage(err), Err: err}
	}
	return data, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Drop the request type from "createUserRequest.email".
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// RPCHandler runs p and writes its result or error in the RPC envelope.
func RPCHandler(name string, p procedure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := p(r)
		if err != nil {
			code := writeError(w, name, err)
			rpcCallsTotal.WithLabelValues(name, string(code)).Inc()
			return
		}
		rpcCallsTotal.WithLabelValues(name, "OK").Inc()
		writeJSON(w, http.StatusOK, resultResponse{Result: res})
	}
}

// writeError answers with the error envelope and returns the code it sent.
func writeError(w http.ResponseWriter, name string, err error) core.ErrorCode {
	var cerr *core.Error
	if errors.As(err, &cerr) {
		status := statusForCode(cerr.Code)
		if status == http.StatusInternalServerError {
			slog.Error("internal error in procedure", "procedure", name, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: errorBody{Code: cerr.Code, Message: cerr.Message}})
		return cerr.Code
	}

	slog.Error("received non coded error from procedure", "procedure", name, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{Code: codeInternal, Message: err.Error()}})
	return codeInternal
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}
