package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse marks a payload that could not be mapped. It is
	// recovered by the normalizer and never reaches a caller.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRequestFailed is matched by every *RequestError.
	ErrRequestFailed = errors.New("request failed")

	ErrExportFailed     = errors.New("export failed")
	ErrExportIncomplete = errors.New("export incomplete")
)

// RequestError is a transport failure, timeout or non-2xx response.
type RequestError struct {
	Op      string
	Status  int    // 0 when no response was received
	Message string // server supplied message, if any
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": request failed"
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }

// Timeout reports whether the request ran out of time.
func (e *RequestError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ExportFailedError aborts an export. Records gathered before the failure are discarded.
type ExportFailedError struct {
	Fetched int // records gathered before the failing page
	Page    int
	Err     error
}

func (e *ExportFailedError) Error() string {
	return fmt.Sprintf("export failed on page %d after %d records: %v", e.Page, e.Fetched, e.Err)
}

func (e *ExportFailedError) Unwrap() error { return e.Err }

func (e *ExportFailedError) Is(target error) bool { return target == ErrExportFailed }

// ExportIncompleteError reports that the page bound was reached while the
// server still had data.
type ExportIncompleteError struct {
	Fetched int
	Pages   int
}

func (e *ExportIncompleteError) Error() string {
	return fmt.Sprintf("export incomplete: stopped after %d pages with %d records", e.Pages, e.Fetched)
}

func (e *ExportIncompleteError) Is(target error) bool { return target == ErrExportIncomplete }

// UserMessage maps an error to a short message suitable for display.
// Raw server payloads are never included.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var reqErr *RequestError
	var failed *ExportFailedError
	var incomplete *ExportIncompleteError

	switch {
	case errors.As(err, &incomplete):
		return fmt.Sprintf("Exportação incompleta: %d transações obtidas antes do limite de páginas.", incomplete.Fetched)
	case errors.As(err, &failed):
		return "Não foi possível exportar as transações. Tente novamente."
	case errors.As(err, &reqErr):
		if reqErr.Timeout() {
			return "O servidor demorou para responder. Tente novamente."
		}
		switch {
		case reqErr.Status == http.StatusUnauthorized || reqErr.Status == http.StatusForbidden:
			return "Sessão expirada. Faça login novamente."
		case reqErr.Status == http.StatusNotFound:
			return "Registro não encontrado."
		case reqErr.Status >= 400 && reqErr.Status < 500:
			return "Dados inválidos. Verifique as informações e tente novamente."
		case reqErr.Status >= 500:
			return "Erro no servidor. Tente novamente mais tarde."
		}
		return "Falha de conexão com o servidor."
	case errors.Is(err, ErrInvalidAmount):
		return "Valor inválido."
	case errors.Is(err, ErrEmptyDescription):
		return "Informe uma descrição."
	case errors.Is(err, ErrInvalidMonth):
		return "Mês inválido."
	default:
		return "Ocorreu um erro inesperado."
	}
}
