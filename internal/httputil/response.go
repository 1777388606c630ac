package httputil

import (
	"encoding/json"
	"net/http"
)

// Notification is the toast-style message a client shows after an action.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

const VariantDestructive = "destructive"

func Success(title, description string) Notification {
	return Notification{Title: title, Description: description}
}

func Failure(description string) Notification {
	return Notification{Title: "Error", Description: description, Variant: VariantDestructive}
}

// RespondWithError writes an error response in JSON format
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithNotification writes a notification plus optional extra fields
func RespondWithNotification(w http.ResponseWriter, code int, n Notification, extra map[string]any) {
	body := map[string]any{"notification": n}
	for k, v := range extra {
		body[k] = v
	}
	RespondWithJSON(w, code, body)
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func DecodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}
