package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"transferencias/internal/api"
	"transferencias/internal/core"
	"transferencias/internal/session"
	"transferencias/internal/view"
)

// fetchFor builds the reload function bound to one session's credentials.
func (s *Server) fetchFor(sess session.Session) view.FetchFunc {
	return func(ctx context.Context) ([]core.Transaction, error) {
		return s.backend.ListTransactions(ctx, sess.Token, sess.User.ID)
	}
}

type transferRow struct {
	ID        int64
	Descricao string
	Tipo      string
	Valor     string
	Negative  bool
	Data      string
	Tags      string
	// Raw values carried as data attributes for the edit form.
	ValorRaw string
	DataISO  string
	TagIDs   string
}

type tableData struct {
	Rows    []transferRow
	Filter  string
	Options []string
	Shown   int
	Of      int
	Total   string
	// Stale reports that the rendered snapshot predates a failed refresh.
	Stale bool
	// Failed reports that no snapshot could ever be fetched.
	Failed bool
}

// handleTransfersPage renders the main page shell; the table itself loads
// through the /ui/transferencias partial.
func (s *Server) handleTransfersPage(w http.ResponseWriter, r *http.Request, sess session.Session) {
	s.renderPage(w, r, "transferencias.html", struct {
		UserName string
	}{UserName: sess.User.Name})
}

// handleTransfersTable renders the filter, table and summary partial.
// reload=1 refetches from the API first; plain calls filter the snapshot
// already held for this session without any network traffic.
func (s *Server) handleTransfersTable(w http.ResponseWriter, r *http.Request, sess session.Session) {
	st := s.storeFor(sess.ID)

	snap := st.Snapshot()
	if r.URL.Query().Get("reload") == "1" || !snap.Loaded {
		// Refresh the snapshot and warm the tag catalog in parallel; the
		// catalog warm-up is best effort so the modal opens without a wait.
		var err error
		g, gctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			err = st.Reload(gctx, s.fetchFor(sess))
			return nil
		})
		g.Go(func() error {
			if _, tagErr := s.cachedTags(gctx); tagErr != nil {
				slog.DebugContext(gctx, "Tag catalog warm-up failed", "error", tagErr)
			}
			return nil
		})
		_ = g.Wait()
		switch {
		case errors.Is(err, view.ErrSuperseded):
			// A newer refresh owns the snapshot now; let its response render.
			w.WriteHeader(http.StatusNoContent)
			return
		case errors.Is(err, api.ErrUnauthorized):
			s.expireSession(w, r, sess)
			return
		case err != nil:
			slog.ErrorContext(r.Context(), "Transfer reload failed", "error", err, "user_id", sess.User.ID)
		}
		snap = st.Snapshot()
	}

	filter := strings.TrimSpace(r.URL.Query().Get("tag"))
	if filter == "" {
		filter = view.FilterAll
	}

	filtered := view.Filter(snap.Transactions, filter)
	summary := view.Summarize(snap.Transactions, filtered)

	data := tableData{
		Filter:  filter,
		Options: view.TagNames(snap.Transactions),
		Shown:   summary.Shown,
		Of:      summary.Of,
		Total:   core.FormatBRL(summary.Total),
		Stale:   snap.Err != nil && len(snap.Transactions) > 0,
		Failed:  snap.Err != nil && len(snap.Transactions) == 0,
	}
	for _, tx := range filtered {
		var tagNames, tagIDs []string
		for _, tag := range tx.Tags {
			tagNames = append(tagNames, tag.Name)
			tagIDs = append(tagIDs, strconv.FormatInt(tag.ID, 10))
		}
		signed, err := tx.Signed()
		negative := err == nil && signed.IsNegative()
		data.Rows = append(data.Rows, transferRow{
			ID:        tx.ID,
			Descricao: tx.Description,
			Tipo:      kindLabel(tx.Kind),
			Valor:     formatValor(tx),
			Negative:  negative,
			Data:      tx.Date.BR(),
			Tags:      strings.Join(tagNames, ", "),
			ValorRaw:  tx.Amount,
			DataISO:   tx.Date.ISO(),
			TagIDs:    strings.Join(tagIDs, ","),
		})
	}

	s.renderPage(w, r, "transfer_table.html", data)
}

// handleTagOptions renders the tag selection checkboxes used by both the
// create and the edit forms. selected carries the ids to pre-check.
func (s *Server) handleTagOptions(w http.ResponseWriter, r *http.Request, _ session.Session) {
	tags, err := s.cachedTags(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Tag catalog fetch failed", "error", err)
		InternalServerError("Erro ao carregar tags").Write(w)
		return
	}

	selected := make(map[int64]bool)
	for _, raw := range strings.Split(r.URL.Query().Get("selected"), ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			selected[id] = true
		}
	}

	type tagOption struct {
		ID      int64
		Name    string
		Checked bool
	}
	data := struct {
		Tags []tagOption
	}{}
	for _, tag := range tags {
		data.Tags = append(data.Tags, tagOption{ID: tag.ID, Name: tag.Name, Checked: selected[tag.ID]})
	}

	s.renderPage(w, r, "tag_select.html", data)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request, sess session.Session) {
	d, err := parseDraft(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}
	if err := d.Validate(); err != nil {
		// Rejected locally, nothing reaches the API.
		UnprocessableEntityError(draftErrorMessage(err)).Write(w)
		return
	}

	if err := s.backend.CreateTransaction(r.Context(), sess.Token, sess.User.ID, d); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.expireSession(w, r, sess)
			return
		}
		slog.ErrorContext(r.Context(), "Transfer create failed", "error", err, "user_id", sess.User.ID, "description", d.Description)
		InternalServerError("Erro ao salvar a transferência").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.totalCreates, 1)
	slog.InfoContext(r.Context(), "Transfer created",
		"user_id", sess.User.ID,
		"description", d.Description,
		"kind", string(d.Kind),
		"tags", len(d.TagIDs))

	NewHTMXResponse().
		TriggerTransfersRefresh().
		TriggerFormReset().
		TriggerModalClose().
		TriggerSuccessNotification("Transferência registrada").
		Write(w)
}

func (s *Server) handleUpdateTransfer(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequestError("Identificador inválido").Write(w)
		return
	}

	d, err := parseDraft(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}
	// Edits run the same checks as creation.
	if err := d.Validate(); err != nil {
		UnprocessableEntityError(draftErrorMessage(err)).Write(w)
		return
	}

	if !s.storeFor(sess.ID).Contains(id) {
		NewHTMXResponse().
			TriggerTransfersRefresh().
			TriggerWarningNotification("Transferência não existe mais").
			Write(w)
		return
	}

	if err := s.backend.UpdateTransaction(r.Context(), sess.Token, id, d); err != nil {
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			s.expireSession(w, r, sess)
			return
		case errors.Is(err, api.ErrNotFound):
			// Deleted elsewhere between render and save.
			NewHTMXResponse().
				TriggerTransfersRefresh().
				TriggerWarningNotification("Transferência não existe mais").
				Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Transfer update failed", "error", err, "user_id", sess.User.ID, "transfer_id", id)
		InternalServerError("Erro ao salvar a transferência").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.totalUpdates, 1)
	slog.InfoContext(r.Context(), "Transfer updated", "user_id", sess.User.ID, "transfer_id", id)

	NewHTMXResponse().
		TriggerTransfersRefresh().
		TriggerModalClose().
		TriggerSuccessNotification("Transferência atualizada").
		Write(w)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequestError("Identificador inválido").Write(w)
		return
	}

	if !s.storeFor(sess.ID).Contains(id) {
		NewHTMXResponse().
			TriggerTransfersRefresh().
			TriggerWarningNotification("Transferência não existe mais").
			Write(w)
		return
	}

	if err := s.backend.DeleteTransaction(r.Context(), sess.Token, id); err != nil {
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			s.expireSession(w, r, sess)
			return
		case errors.Is(err, api.ErrNotFound):
			// Already gone; the refresh below reconciles the view.
		default:
			slog.ErrorContext(r.Context(), "Transfer delete failed", "error", err, "user_id", sess.User.ID, "transfer_id", id)
			InternalServerError("Erro ao excluir a transferência").Write(w)
			return
		}
	}

	atomic.AddInt64(&s.appMetrics.totalDeletes, 1)
	slog.InfoContext(r.Context(), "Transfer deleted", "user_id", sess.User.ID, "transfer_id", id)

	NewHTMXResponse().
		TriggerTransfersRefresh().
		TriggerSuccessNotification("Transferência excluída").
		Write(w)
}
