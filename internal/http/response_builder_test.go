package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerTransfersRefresh().
		TriggerFormReset().
		TriggerModalClose().
		TriggerSuccessNotification("Test message").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	expectedParts := []string{
		`"transfers:refresh"`,
		`"form:reset"`,
		`"modal:close"`,
		`"show-notification"`,
		`"type":"success"`,
		`"message":"Test message"`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_ErrorResponses(t *testing.T) {
	cases := []struct {
		name    string
		builder *HTMXResponseBuilder
		status  int
	}{
		{"bad request", BadRequestError("ruim"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("inválido"), http.StatusUnprocessableEntity},
		{"internal", InternalServerError("falhou"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.builder.Write(w)
			if w.Code != tc.status {
				t.Errorf("Status = %d, want %d", w.Code, tc.status)
			}
			if !strings.Contains(w.Body.String(), `class="error"`) {
				t.Errorf("expected error div in body: %s", w.Body.String())
			}
		})
	}
}

func TestHTMXResponseBuilder_EscapesErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusBadRequest, `<script>alert("x")</script>`).Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("error message not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped markup: %s", body)
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("HX-Redirect", "/login").
		Status(http.StatusUnauthorized).
		Write(w)

	if got := w.Header().Get("HX-Redirect"); got != "/login" {
		t.Errorf("HX-Redirect = %q, want /login", got)
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", w.Code)
	}
}
