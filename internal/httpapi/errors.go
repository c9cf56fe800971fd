package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/obs"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a tagged error to its status and stable name plus any
// extra props. Anything untagged is a server fault: logged with request
// context, surfaced as a bare 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := errs.As(err); ok {
		body := map[string]any{
			"errorCode": e.Kind.Status(),
			"error":     e.Kind.Name(),
		}
		for k, v := range e.Props {
			body[k] = v
		}
		writeJSON(w, e.Kind.Status(), body)
		return
	}
	obs.Logger().WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).WithError(err).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"errorCode": http.StatusInternalServerError,
		"error":     "server_error",
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
		"errorCode": http.StatusMethodNotAllowed,
		"error":     "method_not_allowed",
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.New(errs.InvalidParameter, "request body is required")
		}
		return errs.Newf(errs.InvalidParameter, "malformed request body: %v", err)
	}
	return nil
}
