package controller

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func Test_parseSearchRequest(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		ct      string
		body    string
		want    string
		wantErr bool
	}{
		{name: "json body", target: "/api/v1/search", ct: "application/json", body: `{"text":"bike & car"}`, want: "bike & car"},
		{name: "json with charset", target: "/api/v1/search", ct: "application/json; charset=utf-8", body: `{"text":"temp"}`, want: "temp"},
		{name: "empty json body is empty query", target: "/api/v1/search", ct: "application/json", body: ``, want: ""},
		{name: "json without text", target: "/api/v1/search", ct: "application/json", body: `{}`, want: ""},
		{name: "invalid json", target: "/api/v1/search", ct: "application/json", body: `{"text":`, wantErr: true},
		{name: "wrong json type", target: "/api/v1/search", ct: "application/json", body: `{"text":5}`, wantErr: true},
		{name: "form body", target: "/api/v1/search", ct: "application/x-www-form-urlencoded", body: url.Values{"text": {"mule"}}.Encode(), want: "mule"},
		{name: "query param", target: "/api/v1/search?text=rain", want: "rain"},
		{name: "nothing", target: "/api/v1/search", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			got, err := parseSearchRequest(req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSearchRequest() = %q, nil; want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSearchRequest() err = %v; want nil", err)
			}
			if got != tt.want {
				t.Errorf("parseSearchRequest() = %q; want %q", got, tt.want)
			}
		})
	}
}

func Test_parseHistoryQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 20},
		{query: "limit=5", want: 5},
		{query: "limit=100", want: 100},
		{query: "limit=101", wantErr: true},
		{query: "limit=0", wantErr: true},
		{query: "limit=-1", wantErr: true},
		{query: "limit=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/selections?"+tt.query, nil)
			got, err := parseHistoryQuery(req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseHistoryQuery() = %d, nil; want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHistoryQuery() err = %v; want nil", err)
			}
			if got != tt.want {
				t.Errorf("limit = %d; want %d", got, tt.want)
			}
		})
	}
}
