package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transferencias/internal/core"
)

const sessionCookieName = "sid"

func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// isHTMX reports whether the request came from htmx rather than a full
// page navigation.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirectToLogin sends the browser to the login page, using HX-Redirect
// for htmx requests so the whole page navigates instead of the swap target.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// parseDraft reads the transfer form fields into a Draft. Validation is the
// caller's job; this only shapes the input.
func parseDraft(r *http.Request) (core.Draft, error) {
	if err := r.ParseForm(); err != nil {
		return core.Draft{}, err
	}

	d := core.Draft{
		Description: sanitizeInput(r.Form.Get("descricao")),
		Kind:        core.Kind(strings.ToUpper(strings.TrimSpace(r.Form.Get("tipo")))),
		Amount:      strings.TrimSpace(r.Form.Get("valor")),
	}

	if v := strings.TrimSpace(r.Form.Get("data")); v != "" {
		date, err := core.ParseDate(v)
		if err == nil {
			d.Date = date
		}
		// An unparseable date stays zero and fails Draft.Validate.
	}

	for _, raw := range r.Form["tag_ids"] {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		d.TagIDs = append(d.TagIDs, id)
	}

	return d, nil
}

// draftErrorMessage maps validation failures to the message shown inline in
// the form.
func draftErrorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyDescription):
		return "Descrição é obrigatória"
	case errors.Is(err, core.ErrInvalidKind):
		return "Tipo deve ser Despesa ou Receita"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Valor inválido"
	case errors.Is(err, core.ErrInvalidDate):
		return "Data inválida"
	case errors.Is(err, core.ErrDuplicateTag):
		return "Tag selecionada mais de uma vez"
	default:
		return "Dados inválidos"
	}
}

// formatValor renders a transaction amount as signed pt-BR currency.
func formatValor(tx core.Transaction) string {
	signed, err := tx.Signed()
	if err != nil {
		// The API owns amount integrity; show the raw string rather than hide the row.
		return tx.Amount
	}
	return core.FormatBRL(signed)
}

func kindLabel(k core.Kind) string {
	if k == core.Receita {
		return "Receita"
	}
	return "Despesa"
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
