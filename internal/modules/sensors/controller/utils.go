package controller

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
)

const (
	dashboardHistoryLimit = 10
	defaultHistoryLimit   = 20
	maxHistoryLimit       = 100
	maxSearchBodyBytes    = 1 << 16
)

type searchRequest struct {
	Text string `json:"text"`
}

// parseSearchRequest reads the search text from a JSON body ({"text": "..."})
// or, for any other content type, from the "text" form or query value. A
// missing text is an empty query, which WoTKit answers like any other.
func parseSearchRequest(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		if err := r.ParseForm(); err != nil {
			return "", errors.New("invalid form body")
		}
		return r.Form.Get("text"), nil
	}

	var req searchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSearchBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", errors.New("invalid JSON body (expected {\"text\": string})")
	}
	return req.Text, nil
}

func parseHistoryQuery(r *http.Request) (limit int, err error) {
	limit = defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > maxHistoryLimit {
			return 0, errors.New("'limit' must be <= 100")
		}
		limit = n
	}
	return limit, nil
}
