package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/config"
)

func testConfig(tokenURL, vaultURL string) config.OracleConfig {
	return config.OracleConfig{
		TokenURL: tokenURL,
		VaultURL: vaultURL,
		APIKey:   "secret",
		Timeout:  2 * time.Second,
	}
}

func TestTokenClientBalanceOf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/colony/balance" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]uint64{"balance": 420})
	}))
	defer srv.Close()

	client := NewTokenClient(testConfig(srv.URL, srv.URL))
	balance, err := client.BalanceOf(context.Background(), "colony")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 420 {
		t.Fatalf("balance = %d, want 420", balance)
	}
}

func TestTokenClientTransfer(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "success", status: http.StatusOK, body: `{"success": true}`},
		{name: "explicit rejection", status: http.StatusOK, body: `{"success": false}`, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantErr: true},
		{name: "undecodable body", status: http.StatusOK, body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req map[string]interface{}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req["to"] != "worker" {
					t.Errorf("transfer to = %v, want worker", req["to"])
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewTokenClient(testConfig(srv.URL, srv.URL))
			err := client.Transfer(context.Background(), "worker", 60, "ref-1")

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Transfer() error = %v", err)
				}
				return
			}
			if !errors.Is(err, entities.ErrTransferFailed) {
				t.Fatalf("Transfer() error = %v, want ErrTransferFailed", err)
			}
		})
	}
}

func TestTokenClientTransferConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewTokenClient(testConfig(srv.URL, srv.URL))
	err := client.Transfer(context.Background(), "worker", 60, "ref-1")
	if !errors.Is(err, entities.ErrTransferFailed) {
		t.Fatalf("Transfer() error = %v, want ErrTransferFailed", err)
	}
}

func TestTokenClientMint(t *testing.T) {
	var gotAmount float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mint" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		gotAmount = req["amount"].(float64)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewTokenClient(testConfig(srv.URL, srv.URL))
	if err := client.Mint(context.Background(), 500, "ref-2"); err != nil {
		t.Fatal(err)
	}
	if gotAmount != 500 {
		t.Fatalf("minted amount = %v, want 500", gotAmount)
	}
}

func TestVaultClientPay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["amount_wei"].(float64) != 25 {
			t.Errorf("amount_wei = %v, want 25", req["amount_wei"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewVaultClient(testConfig(srv.URL, srv.URL))
	if err := client.Pay(context.Background(), "worker", 25, "ref-3"); err != nil {
		t.Fatal(err)
	}
}

func TestVaultClientPayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewVaultClient(testConfig(srv.URL, srv.URL))
	err := client.Pay(context.Background(), "worker", 25, "ref-3")
	if !errors.Is(err, entities.ErrTransferFailed) {
		t.Fatalf("Pay() error = %v, want ErrTransferFailed", err)
	}
}

func TestVaultClientSweep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sweeps" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]uint64{"amount_wei": 31})
	}))
	defer srv.Close()

	client := NewVaultClient(testConfig(srv.URL, srv.URL))
	swept, err := client.Sweep(context.Background(), "0xsuccessor", "ref-4")
	if err != nil {
		t.Fatal(err)
	}
	if swept != 31 {
		t.Fatalf("swept = %d, want 31", swept)
	}
}
