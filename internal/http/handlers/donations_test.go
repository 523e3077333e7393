package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"harambee/internal/domain"
)

func postJSON(t *testing.T, url string, body map[string]any, header http.Header) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestDonationsCreate(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.server.URL+"/v1/donations", map[string]any{
		"owner_id":       testOwnerID,
		"amount":         500,
		"currency":       "KES",
		"payment_method": "mpesa",
		"phone":          "0712345678",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	if body["status"] != "pending" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["correlation_id"] != "ws_CO_1" {
		t.Fatalf("correlation_id = %v", body["correlation_id"])
	}
	if body["donation_id"] == "" {
		t.Fatal("donation_id missing")
	}
}

func TestDonationsCreateAcceptsStringAmount(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.server.URL+"/v1/donations", map[string]any{
		"owner_id":       testOwnerID,
		"amount":         "250.50",
		"currency":       "KES",
		"payment_method": "mpesa",
		"phone":          "0712345678",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDonationsCreateValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "negative amount",
			body: map[string]any{"owner_id": testOwnerID, "amount": -5, "currency": "KES", "payment_method": "mpesa", "phone": "0712345678"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown method",
			body: map[string]any{"owner_id": testOwnerID, "amount": 10, "currency": "KES", "payment_method": "cheque"},
			want: http.StatusBadRequest,
		},
		{
			name: "bad currency",
			body: map[string]any{"owner_id": testOwnerID, "amount": 10, "currency": "NOPE", "payment_method": "mpesa", "phone": "0712345678"},
			want: http.StatusBadRequest,
		},
	}

	f := newFixture(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, f.server.URL+"/v1/donations", tc.body, nil)
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestDonationsCreateProviderErrors(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t)
		f.adapter.initiateErr = domain.ErrProviderRejected

		resp := postJSON(t, f.server.URL+"/v1/donations", map[string]any{
			"owner_id": testOwnerID, "amount": 10, "currency": "KES", "payment_method": "mpesa", "phone": "0712345678",
		}, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusPaymentRequired {
			t.Fatalf("status = %d, want 402", resp.StatusCode)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.adapter.initiateErr = domain.ErrProviderUnavailable

		resp := postJSON(t, f.server.URL+"/v1/donations", map[string]any{
			"owner_id": testOwnerID, "amount": 10, "currency": "KES", "payment_method": "mpesa", "phone": "0712345678",
		}, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", resp.StatusCode)
		}
	})
}

func TestDonationsStatus(t *testing.T) {
	f := newFixture(t)
	d := f.seedPending(t, "ws_CO_9")

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/v1/donations/"+d.ID+"/status", nil)
	req.Header.Set("X-Owner-ID", testOwnerID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	if body["status"] != "pending" {
		t.Fatalf("status field = %v", body["status"])
	}
	if _, ok := body["receipt_fields"]; ok {
		t.Fatal("receipt_fields must be hidden while pending")
	}
}

func TestDonationsStatusRequiresOwnerHeader(t *testing.T) {
	f := newFixture(t)
	d := f.seedPending(t, "ws_CO_9")

	resp, err := http.Get(f.server.URL + "/v1/donations/" + d.ID + "/status")
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestDonationsStatusForeignOwner(t *testing.T) {
	f := newFixture(t)
	d := f.seedPending(t, "ws_CO_9")

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/v1/donations/"+d.ID+"/status", nil)
	req.Header.Set("X-Owner-ID", "19cdbb3a-52a8-42b0-b844-bb14b71fd0b6")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestDonationsGetUnknownID(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/v1/donations/missing", nil)
	req.Header.Set("X-Owner-ID", testOwnerID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
