package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edupay-service/internal/domain/ports/adapter"
)

func TestSignatureRoundTrip(t *testing.T) {
	secret := "s3cret"
	body := []byte(`{"reference":"01ABCDEF","status":"successful"}`)

	sig := ComputeSignature(secret, body)
	if !VerifySignature(secret, body, sig) {
		t.Fatal("valid signature rejected")
	}
	if !VerifySignature(secret, body, " "+sig+" ") {
		t.Error("surrounding whitespace should be tolerated")
	}

	if VerifySignature(secret, []byte(`{"reference":"01ABCDEF","status":"failed"}`), sig) {
		t.Error("tampered body accepted")
	}
	if VerifySignature("other-secret", body, sig) {
		t.Error("signature under different secret accepted")
	}
	if VerifySignature(secret, body, "") {
		t.Error("empty signature accepted")
	}
	if VerifySignature("", body, sig) {
		t.Error("empty secret accepted")
	}
	if VerifySignature(secret, body, "zz-not-hex") {
		t.Error("non-hex signature accepted")
	}
}

func TestMomoGatewayCollect(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/collect" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("authorization = %q", got)
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["phone"] != "237677123456" || body["external_reference"] != "ref-1" {
				t.Errorf("body = %v", body)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"transaction_id": "mtx-99",
				"status":         "pending",
			})
		}))
		defer srv.Close()

		g := NewMomoGateway(srv.URL, "test-key")
		res, err := g.Collect(context.Background(), adapter.CollectRequest{
			Amount:      5000,
			PhoneNumber: "237677123456",
			Currency:    "XAF",
			Reference:   "ref-1",
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.ProviderTxID != "mtx-99" {
			t.Errorf("provider tx = %s, want mtx-99", res.ProviderTxID)
		}
	})

	t.Run("provider rejection surfaces as error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"message": "insufficient funds"})
		}))
		defer srv.Close()

		g := NewMomoGateway(srv.URL, "test-key")
		_, err := g.Collect(context.Background(), adapter.CollectRequest{Amount: 5000, PhoneNumber: "237677123456", Reference: "ref-2"})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "422") {
			t.Errorf("err = %v, want http status included", err)
		}
	})

	t.Run("missing transaction id is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
		}))
		defer srv.Close()

		g := NewMomoGateway(srv.URL, "test-key")
		if _, err := g.Collect(context.Background(), adapter.CollectRequest{Amount: 5000, PhoneNumber: "237677123456", Reference: "ref-3"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestMomoGatewayStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/mtx-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transaction_id": "mtx-42",
			"status":         "successful",
			"amount":         1500,
			"phone":          "237677123456",
		})
	}))
	defer srv.Close()

	g := NewMomoGateway(srv.URL, "test-key")
	res, err := g.Status(context.Background(), "mtx-42")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "successful" || res.Amount != 1500 {
		t.Errorf("result = %+v", res)
	}
}
