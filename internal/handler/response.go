package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ternary-app/link-server/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON fills dst from the request body. An empty body decodes to the
// zero value: the linking endpoints treat every field as optional at the
// transport layer and validate required ones explicitly.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
