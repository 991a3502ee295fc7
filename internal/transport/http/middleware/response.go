package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError is the middleware-local error writer. It mirrors the handler
// package's envelope shape so rejections look the same wherever they originate.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
