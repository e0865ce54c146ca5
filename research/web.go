package research

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/sirupsen/logrus"
)

const maxUploadSize = 64 << 20

type titleResponse struct {
	Title  string `json:"title"`
	Source Source `json:"source"`
	Cached bool   `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// WebHandler serves title extraction over HTTP.
type WebHandler struct {
	ex  TitleExtractor
	log *logrus.Logger
}

func NewWebHandler(ex TitleExtractor, log *logrus.Logger) *WebHandler {
	return &WebHandler{
		ex:  ex,
		log: log,
	}
}

func (wh *WebHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		wh.log.Errorf("Error while writing response: %v", err)
	}
}

// upload copies the request body, or its multipart "file" field, to a
// temporary file.
func (wh *WebHandler) upload(r *http.Request) (string, error) {
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			return "", err
		}
		defer f.Close()
		body = f
	}
	tmp, err := os.CreateTemp("", "pdftitle-upload-*.pdf")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	n, err := io.Copy(tmp, body)
	if err == nil && n == 0 {
		err = errors.New("empty upload")
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (wh *WebHandler) handleTitle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	path, err := wh.upload(r)
	if err != nil {
		wh.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	defer os.Remove(path)

	res, err := wh.ex.Extract(r.Context(), path)
	switch {
	case err == nil:
		wh.writeJSON(w, http.StatusOK, titleResponse{Title: res.Title, Source: res.Source, Cached: res.Cached})
	case errors.Is(err, title.ErrNoTitle), errors.Is(err, title.ErrMalformedLayout), errors.Is(err, ErrUnreadablePDF):
		wh.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case IsFatal(err):
		wh.log.WithError(err).Error("Conversion failed.")
		wh.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		wh.log.WithError(err).Error("Title extraction failed.")
		wh.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (wh *WebHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		wh.log.Errorf("Error while writing handleHealth response: %v", err)
	}
}

// ResponseWriterWrapper records what a handler wrote for the request log.
type ResponseWriterWrapper struct {
	http.ResponseWriter
	status int
	bytes  int
}

func NewResponseWriterWrapper(w http.ResponseWriter) *ResponseWriterWrapper {
	return &ResponseWriterWrapper{ResponseWriter: w, status: http.StatusOK}
}

func (rww *ResponseWriterWrapper) Status() int {
	return rww.status
}

func (rww *ResponseWriterWrapper) Bytes() int {
	return rww.bytes
}

func (rww *ResponseWriterWrapper) WriteHeader(statusCode int) {
	rww.status = statusCode
	rww.ResponseWriter.WriteHeader(statusCode)
}

func (rww *ResponseWriterWrapper) Write(b []byte) (int, error) {
	n, err := rww.ResponseWriter.Write(b)
	rww.bytes += n
	return n, err
}

func (wh *WebHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		rww := NewResponseWriterWrapper(w)
		next.ServeHTTP(rww, r)
		wh.log.WithFields(logrus.Fields{
			"RequestID": id,
			"Method":    r.Method,
			"Path":      r.URL.Path,
			"Status":    rww.Status(),
			"Bytes":     rww.Bytes(),
			"Duration":  time.Since(start),
		}).Info("Request served.")
	})
}

func (wh *WebHandler) HandleFuncs(router *mux.Router) {
	router.Use(wh.logRequests)
	router.HandleFunc("/titles", wh.handleTitle).Methods("POST")
	router.HandleFunc("/healthz", wh.handleHealth).Methods("GET")
}

// DropboxWebhookHandler starts a sync pass of one folder whenever Dropbox
// notifies a change.
type DropboxWebhookHandler struct {
	rootPath  string
	ds        *DropboxSynchronizer
	appSecret string
	log       *logrus.Logger
}

func NewDropboxWebhookHandler(path string, ds *DropboxSynchronizer, appSecret string, log *logrus.Logger) *DropboxWebhookHandler {
	return &DropboxWebhookHandler{
		rootPath:  path,
		ds:        ds,
		appSecret: appSecret,
		log:       log,
	}
}

func (dwh *DropboxWebhookHandler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	w.Header().Add("Content-Type", "text/plain")
	w.Header().Add("X-Content-Type-Options", "nosniff")
	_, err := w.Write([]byte(challenge))
	if err != nil {
		dwh.log.Errorf("Error while writing handleChallenge response: %v", err)
	}
}

// validSignature checks X-Dropbox-Signature, the hex HMAC-SHA256 of the
// body keyed by the app secret. Without a secret every request passes.
func (dwh *DropboxWebhookHandler) validSignature(r *http.Request, body []byte) bool {
	if dwh.appSecret == "" {
		return true
	}
	got, err := hex.DecodeString(r.Header.Get("X-Dropbox-Signature"))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(dwh.appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (dwh *DropboxWebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !dwh.validSignature(r, body) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	// Dropbox expects an answer within seconds, so the pass runs on its own.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				dwh.log.Errorf("Recovered from panic: %s", r)
			}
		}()

		reports, err := dwh.ds.SyncFolder(context.Background(), dwh.rootPath)
		if err != nil {
			dwh.log.WithError(err).Error("Dropbox sync failed.")
		}
		for _, fr := range reports {
			dwh.log.WithFields(logrus.Fields{
				"Path":    fr.Path,
				"Title":   fr.Title,
				"Outcome": fr.Outcome,
			}).Info("Synced file.")
		}
	}()
}

func (dwh *DropboxWebhookHandler) HandleFuncs(router *mux.Router) {
	router.HandleFunc("", dwh.handleChallenge).Methods("GET")
	router.HandleFunc("", dwh.handleWebhook).Methods("POST")
}

// NewRouter mounts the title API, and the Dropbox webhook under
// /dropbox/webhook when dwh is not nil.
func NewRouter(wh *WebHandler, dwh *DropboxWebhookHandler) *mux.Router {
	router := mux.NewRouter()
	wh.HandleFuncs(router)
	if dwh != nil {
		dwh.HandleFuncs(router.PathPrefix("/dropbox/webhook").Subrouter())
	}
	return router
}

// Serve runs handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, log *logrus.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("Addr", addr).Info("Listening.")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return errors.Wrap(err, "web Serve failed")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "web Serve shutdown failed")
}
