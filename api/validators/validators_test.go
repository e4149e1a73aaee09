package validators

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
)

type payoutBody struct {
	Destination string `json:"destination" validate:"required,max=128,printable"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"destination":""}`))
	var body payoutBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["destination"] != "is required" {
		t.Fatalf("expected destination detail, got %#v", typed.Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"destination":"ACC","extra":1}`))
	var body payoutBody
	if err := DecodeJSONBody(req, &body); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("projectId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "projectId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := ParseUUIDParam(req, "contributionId"); err == nil {
		t.Fatal("expected missing param error")
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("amount", "12.34")
	if err != nil || amount.Cents() != 1234 {
		t.Fatalf("expected 1234 cents, got %d (%v)", amount.Cents(), err)
	}
	for _, raw := range []string{"", "abc", "0", "-5.00"} {
		if _, err := ParseAmount("amount", raw); !errors.Is(err, pkgerrors.ErrInvalidAmount) {
			t.Fatalf("%q: expected invalid amount, got %v", raw, err)
		}
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if v, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || v != 25 {
		t.Fatalf("expected default 25, got %d (%v)", v, err)
	}
}

func TestDecodeJSONBodyLimits(t *testing.T) {
	cases := map[string]string{
		"empty":      ``,
		"trailing":   `{"destination":"ACC"}{"destination":"ACC"}`,
		"control":    "{\"destination\":\"AC\\u0007C\"}",
		"wrong type": `{"destination":12}`,
	}
	for name, raw := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body payoutBody
		err := DecodeJSONBody(req, &body)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	oversized := `{"destination":"` + strings.Repeat("a", int(MaxBodyBytes)) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(oversized))
	var body payoutBody
	err := DecodeJSONBody(req, &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeTooLarge {
		t.Fatalf("expected payload too large, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  AC\tC\x00123  ", 0); got != "ACC123" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("ñandú-cuenta", 5); got != "ñandú" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
