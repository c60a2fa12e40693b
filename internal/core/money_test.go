package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"12.345", "12.35", true},
		{"0.001", "", false},
		{"0", "", false},
		{"-1", "", false},
		{"1.2.3", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error %v", tc.in, err)
			}
			if got.StringFixed(2) != tc.want {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got.StringFixed(2), tc.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseAmount(%q) expected error", tc.in)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"0":        "R$ 0,00",
		"12.5":     "R$ 12,50",
		"1234.56":  "R$ 1.234,56",
		"-1000000": "-R$ 1.000.000,00",
	}
	for in, want := range cases {
		if got := FormatBRL(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatBRL(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(decimal.RequireFromString("0.845")); got != 85 {
		t.Fatalf("Percent(0.845) = %d", got)
	}
	if got := Percent(decimal.RequireFromString("1.2")); got != 120 {
		t.Fatalf("Percent(1.2) = %d", got)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	reqErr := &RequestError{Op: "list transactions", Status: http.StatusInternalServerError}
	wrapped := fmt.Errorf("dashboard: %w", reqErr)
	if !errors.Is(wrapped, ErrRequestFailed) {
		t.Fatalf("request error should match ErrRequestFailed")
	}

	failed := &ExportFailedError{Fetched: 4000, Page: 3, Err: reqErr}
	if !errors.Is(failed, ErrExportFailed) || !errors.Is(failed, ErrRequestFailed) {
		t.Fatalf("export failed should match both sentinels")
	}

	incomplete := &ExportIncompleteError{Fetched: 100, Pages: 50}
	if !errors.Is(incomplete, ErrExportIncomplete) {
		t.Fatalf("incomplete should match ErrExportIncomplete")
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&RequestError{Op: "x", Status: 401}, "Sessão expirada. Faça login novamente."},
		{&RequestError{Op: "x", Status: 422, Message: "raw payload"}, "Dados inválidos. Verifique as informações e tente novamente."},
		{&RequestError{Op: "x", Status: 503}, "Erro no servidor. Tente novamente mais tarde."},
		{&RequestError{Op: "x", Err: errors.New("dial tcp")}, "Falha de conexão com o servidor."},
		{&ExportFailedError{Page: 2, Err: errors.New("boom")}, "Não foi possível exportar as transações. Tente novamente."},
		{ErrInvalidAmount, "Valor inválido."},
		{errors.New("other"), "Ocorreu um erro inesperado."},
	}
	for i, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Fatalf("case %d: UserMessage = %q, want %q", i, got, tc.want)
		}
	}
}
