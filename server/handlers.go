package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/export"
	"github.com/ByLCY/vyapaarpost/intake"
	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/notify"
	"github.com/ByLCY/vyapaarpost/share"
	"github.com/ByLCY/vyapaarpost/typography"
)

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID           string       `json:"id"`
	State        editor.State `json:"state"`
	Busy         bool         `json:"busy"`
	Notification string       `json:"notification,omitempty"`
}

type styleRequest struct {
	Font            *typography.Selector `json:"font"`
	HeadingColor    *string              `json:"headingColor"`
	SubheadingColor *string              `json:"subheadingColor"`
	ShowWatermark   *bool                `json:"showWatermark"`
}

// shareResponse adds a scannable QR code to a share that produced a link.
type shareResponse struct {
	export.Result
	QRCode []byte `json:"qrPng,omitempty"`
}

type exportRequest struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		writeJSON(w, http.StatusOK, s.opts.Catalog.ListByCategory(catalog.Category(category)))
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Catalog.All())
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.opts.Catalog.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Catalog.ListCategories())
}

func (s *Server) listFonts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Catalog.Typography().Options())
}

func (s *Server) palette(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, editor.Palette())
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	id, sess := s.newSession()
	s.logger.Info("session created", "session", id)
	writeJSON(w, http.StatusCreated, s.view(id, sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id string, sess *session) {
		writeJSON(w, http.StatusOK, s.view(id, sess))
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.drop(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID string `json:"templateId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.withSession(w, r, func(id string, sess *session) {
		tpl, err := s.opts.Catalog.GetByID(body.TemplateID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		sess.editor.SelectTemplate(tpl)
		writeJSON(w, http.StatusOK, s.view(id, sess))
	})
}

func (s *Server) setField(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.withSession(w, r, func(id string, sess *session) {
		if err := sess.editor.SetField(editor.FieldName(chi.URLParam(r, "name")), body.Value); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.view(id, sess))
	})
}

func (s *Server) setStyle(w http.ResponseWriter, r *http.Request) {
	var body styleRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Font != nil && !s.opts.Catalog.Typography().Has(*body.Font) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown font %q", *body.Font))
		return
	}
	s.withSession(w, r, func(id string, sess *session) {
		if body.Font != nil {
			sess.editor.SetFont(*body.Font)
		}
		if body.HeadingColor != nil {
			sess.editor.SetHeadingColor(*body.HeadingColor)
		}
		if body.SubheadingColor != nil {
			sess.editor.SetSubheadingColor(*body.SubheadingColor)
		}
		if body.ShowWatermark != nil {
			sess.editor.SetShowWatermark(*body.ShowWatermark)
		}
		writeJSON(w, http.StatusOK, s.view(id, sess))
	})
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.MaxUpload
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, intake.ErrTooLarge.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, intake.ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	s.withSession(w, r, func(id string, sess *session) {
		img, err := intake.Normalize(file, intake.MaxDimension)
		switch {
		case errors.Is(err, intake.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		case err != nil:
			// 会话状态保持不变
			sess.notifier.Show(notify.UploadFailed)
			s.logger.Warn("image upload rejected", "session", id, "error", err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		sess.editor.SetUserImage(img)
		writeJSON(w, http.StatusOK, s.view(id, sess))
	})
}

func (s *Server) clearImage(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id string, sess *session) {
		sess.editor.SetUserImage(nil)
		writeJSON(w, http.StatusOK, s.view(id, sess))
	})
}

func (s *Server) tree(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	t, err := layout.Render(st, s.opts.Layout)
	if err != nil {
		writeRenderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := layout.EncodeJSON(w, t); err != nil {
		s.logger.Error("encode tree", "error", err)
	}
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	sess, st, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	t, err := layout.Render(st, s.opts.Layout)
	if err != nil {
		writeRenderError(w, err)
		return
	}
	bmp, err := sess.pipeline.Preview(r.Context(), t, 1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writePNG(w, bmp, "", false)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, export.ModeDownload)
}

func (s *Server) share(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, export.ModeShare)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, mode export.Mode) {
	var body exportRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}
	sess, st, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	if !st.HasTemplate() {
		writeError(w, http.StatusConflict, "no template selected")
		return
	}
	res, err := sess.pipeline.Export(r.Context(), st, export.Request{
		Mode:     mode,
		Filename: body.Filename,
		Title:    body.Title,
		Text:     body.Text,
	})
	switch {
	case errors.Is(err, export.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"outcome": export.OutcomeFailed, "error": err.Error()})
		return
	}
	if mode == export.ModeDownload {
		writePNG(w, res.Bitmap, res.Filename, res.Tainted)
		return
	}
	out := shareResponse{Result: res}
	if res.URL != "" {
		qr, err := share.QRCode(res.URL, share.DefaultQRSize)
		if err != nil {
			s.logger.Warn("qr code generation failed", "url", res.URL, "error", err)
		}
		out.QRCode = qr
	}
	writeJSON(w, http.StatusOK, out)
}

// withSession runs fn while holding the session's lock.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(id string, sess *session)) {
	id := chi.URLParam(r, "id")
	sess, ok := s.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	fn(id, sess)
}

// snapshot copies the session state so rendering can proceed unlocked.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*session, editor.State, bool) {
	var (
		out *session
		st  editor.State
		ok  bool
	)
	s.withSession(w, r, func(_ string, sess *session) {
		out, st, ok = sess, sess.editor.Snapshot(), true
	})
	return out, st, ok
}

func (s *Server) view(id string, sess *session) sessionView {
	return sessionView{
		ID:           id,
		State:        sess.editor.Snapshot(),
		Busy:         sess.pipeline.Busy(),
		Notification: sess.notifier.Current(),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeRenderError(w http.ResponseWriter, err error) {
	if errors.Is(err, layout.ErrNoTemplate) {
		writeError(w, http.StatusConflict, "no template selected")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writePNG(w http.ResponseWriter, bmp *export.Bitmap, filename string, tainted bool) {
	w.Header().Set("Content-Type", "image/png")
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	if tainted {
		w.Header().Set("X-Vyapaarpost-Tainted", "true")
	}
	w.WriteHeader(http.StatusOK)
	bytes.NewReader(bmp.PNG).WriteTo(w)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
