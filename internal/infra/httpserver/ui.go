package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	appchat "github.com/bryanwahyu/estate-chat/internal/application/chat"
	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
	"github.com/bryanwahyu/estate-chat/internal/middleware"
	"github.com/bryanwahyu/estate-chat/internal/render"
)

// Notice codes carried through the redirect after a rejected send.
const (
	noticeEmpty    = "empty"
	noticeFileType = "filetype"
	noticeTooLarge = "toolarge"
	noticeNoTable  = "notable"
)

var noticeText = map[string]string{
	noticeEmpty:    "Type a question before sending.",
	noticeFileType: "Only .xlsx, .xls and .csv files can be uploaded.",
	noticeTooLarge: "That file is too large to upload.",
	noticeNoTable:  "There is no table to export yet.",
}

var templateFuncs = template.FuncMap{
	"clock":   func(t time.Time) string { return t.Local().Format("15:04") },
	"bytes":   func(n int) string { return humanize.Bytes(uint64(n)) },
	"sub":     func(a, b int) int { return a - b },
	"noChart": func() string { return render.NoChartText },
	"noTable": func() string { return render.NoTableText },
}

type pageData struct {
	SessionID string
	Messages  []domain.Message
	File      *domain.UploadedFile
	Panel     render.Panel
	Notice    string
}

// GET /
// Every visit starts a fresh conversation.
func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) error {
	sess, err := r.chatSvc.Start()
	if err != nil {
		return err
	}
	http.Redirect(w, req, chatPath(sess.ID), http.StatusSeeOther)
	return nil
}

// GET /chat/{session}
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionParam(req)
	var sess domain.Session
	if err == nil {
		sess, err = r.chatSvc.Snapshot(id)
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		// expired or from before a restart
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return nil
	}
	if err != nil {
		return err
	}

	data := pageData{
		SessionID: sess.ID,
		Messages:  sess.Messages,
		File:      sess.File,
		Panel:     render.BuildPanel(sess.Result),
		Notice:    noticeText[req.URL.Query().Get("notice")],
	}
	var buf bytes.Buffer
	if err := r.pages.ExecuteTemplate(&buf, "chat.html", data); err != nil {
		return fmt.Errorf("render chat page: %w", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	r.write(w, req, buf.Bytes())
	return nil
}

// POST /chat/{session}/messages
// Multipart form: message, optional location, optional file.
func (r *Router) handleSend(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionParam(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+maxJSONBody)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return redirectNotice(w, req, id, noticeTooLarge)
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return fmt.Errorf("parse send form: %w", err)
		}
	}

	file, err := formFile(req)
	if err != nil {
		return err
	}
	cmd := appchat.SendCommand{
		Text:     middleware.ClampMessage(middleware.SanitizeString(req.FormValue("message"))),
		Location: middleware.SanitizeString(req.FormValue("location")),
		File:     file,
	}

	res, err := r.chatSvc.Send(req.Context(), id, cmd)
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return redirectNotice(w, req, id, noticeEmpty)
	case errors.Is(err, domain.ErrUnsupportedFile):
		return redirectNotice(w, req, id, noticeFileType)
	case err != nil:
		return err
	}

	middleware.IncrementSends()
	if res.Uploaded != nil || res.UploadErr != nil {
		middleware.IncrementUploads()
	}
	if res.UploadErr != nil {
		middleware.IncrementUploadsFailed()
	}
	if res.ChatErr != nil {
		middleware.IncrementChatsFailed()
	}
	http.Redirect(w, req, chatPath(id)+"#latest", http.StatusSeeOther)
	return nil
}

// POST /chat/{session}/file/detach
func (r *Router) handleDetach(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionParam(req)
	if err != nil {
		return err
	}
	if err := r.chatSvc.DetachFile(id); err != nil {
		return err
	}
	http.Redirect(w, req, chatPath(id), http.StatusSeeOther)
	return nil
}

// GET /chat/{session}/export.xlsx
func (r *Router) handleExportXLSX(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionParam(req)
	if err != nil {
		return err
	}
	table, err := r.currentTable(id)
	if err != nil {
		return err
	}
	data, err := render.ExportXLSX(table)
	if errors.Is(err, render.ErrNothingToExport) {
		return redirectNotice(w, req, id, noticeNoTable)
	}
	if err != nil {
		return err
	}
	r.download(w, req, render.XLSXContentType, "results.xlsx", data)
	return nil
}

// GET /chat/{session}/export.csv
func (r *Router) handleExportCSV(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionParam(req)
	if err != nil {
		return err
	}
	table, err := r.currentTable(id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = render.ExportCSV(&buf, table)
	if errors.Is(err, render.ErrNothingToExport) {
		return redirectNotice(w, req, id, noticeNoTable)
	}
	if err != nil {
		return err
	}
	r.download(w, req, render.CSVContentType, "results.csv", buf.Bytes())
	return nil
}

func (r *Router) currentTable(sessionID string) (domain.Table, error) {
	sess, err := r.chatSvc.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Result == nil {
		return nil, nil
	}
	return sess.Result.Table, nil
}

// formFile reads the optional "file" field. An empty file input is not a file.
func formFile(req *http.Request) (*domain.UploadedFile, error) {
	if req.MultipartForm == nil {
		return nil, nil
	}
	f, hdr, err := req.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file field: %w", err)
	}
	defer f.Close()
	if hdr.Filename == "" {
		return nil, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", hdr.Filename, err)
	}
	return &domain.UploadedFile{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// sessionParam reads the {session} segment. A malformed id is treated like
// an unknown one.
func sessionParam(req *http.Request) (string, error) {
	id := chi.URLParam(req, "session")
	if err := middleware.ValidateSessionID(id); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSessionNotFound, err)
	}
	return id, nil
}

func chatPath(sessionID string) string {
	return "/chat/" + url.PathEscape(sessionID)
}

func redirectNotice(w http.ResponseWriter, req *http.Request, sessionID, code string) error {
	http.Redirect(w, req, chatPath(sessionID)+"?notice="+code, http.StatusSeeOther)
	return nil
}

func (r *Router) download(w http.ResponseWriter, req *http.Request, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	r.write(w, req, data)
}
