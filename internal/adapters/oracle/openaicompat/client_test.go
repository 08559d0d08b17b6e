package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantText   string
		wantErr    bool
		wantAuthHdr string
	}{
		{
			name: "returns first choice content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/chat/completions" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(chatResponse{
					Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: `{"artist":"Weezer"}`}}},
				})
			},
			wantText:    `{"artist":"Weezer"}`,
			wantAuthHdr: "Bearer test-key",
		},
		{
			name: "propagates server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
			wantErr: true,
		},
		{
			name: "errors on empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(chatResponse{Choices: nil})
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				tc.handler(w, r)
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL, Model: "gpt-5", APIKey: "test-key"})
			client.httpClient.MaxRetries = 1

			got, err := client.Generate(context.Background(), "classify this folder")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantText {
				t.Fatalf("got %q, want %q", got, tc.wantText)
			}
			if tc.wantAuthHdr != "" && gotAuth != tc.wantAuthHdr {
				t.Fatalf("got auth header %q, want %q", gotAuth, tc.wantAuthHdr)
			}
		})
	}
}

func TestClient_Generate_Stream(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`data: {"choices":[{"delta":{"content":"{\"artist\":"}}]}`,
			`data: {"choices":[{"delta":{"content":"\"Weezer\"}"}}]}`,
			`data: not json, skip me`,
			`data: [DONE]`,
		}
		for _, c := range chunks {
			io.WriteString(w, c+"\n")
		}
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Model: "llama3.1", Stream: true})
	client.httpClient.MaxRetries = 1

	got, err := client.Generate(context.Background(), "classify this folder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"artist":"Weezer"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !gotBody.Stream {
		t.Fatalf("expected request to set stream=true")
	}
}
