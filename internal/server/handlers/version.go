package handlers

import (
	"encoding/json"
	"net/http"
)

// VersionResponse is the /version payload.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// VersionHandler serves the build identity of the running binary.
func VersionHandler(version, commit, date string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(VersionResponse{
			Version: version,
			Commit:  commit,
			Date:    date,
		})
	}
}
