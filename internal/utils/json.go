package utils

import (
	"encoding/json"
	"net/http"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status. The body is written exactly once.
func JSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		grip.Warning(message.WrapError(err, message.Fields{
			"message": "writing json response",
			"status":  status,
		}))
	}
}

func JSONError(w http.ResponseWriter, msg string, status int) {
	JSON(w, errorBody{Error: msg}, status)
}
