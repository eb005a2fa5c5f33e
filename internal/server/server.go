// Package server exposes the speaker enrollment and identification service
// over HTTP. Routes follow Go 1.22 method patterns and all responses are JSON
// envelopes with a top-level "status" field ("success" or "error").
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxident/voxident/internal/app"
	"github.com/voxident/voxident/internal/health"
	"github.com/voxident/voxident/internal/identify"
	"github.com/voxident/voxident/pkg/voiceid"
)

// DefaultMaxUploadBytes caps the size of a single audio upload.
const DefaultMaxUploadBytes = 10 << 20

// allowedExtensions lists the upload file extensions accepted at the
// boundary. The transcoder decides whether the content is actually decodable.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".webm": true,
	".m4a":  true,
	".flac": true,
}

// Server translates HTTP requests into [app.App] operations.
type Server struct {
	app       *app.App
	logger    *slog.Logger
	maxUpload int64
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger used for request-level diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxUploadBytes overrides the upload size cap. Values <= 0 keep the
// default.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New creates a Server around the given application.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{
		app:       a,
		logger:    slog.Default(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds all service routes to mux, including liveness and readiness
// probes and the Prometheus scrape endpoint.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /enroll", s.handleEnroll)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("GET /enrolled-users", s.handleEnrolledUsers)
	mux.HandleFunc("DELETE /delete-user/{username}", s.handleDeleteUser)
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(health.Checker{
		Name: "registry",
		Check: func(ctx context.Context) error {
			_, err := s.app.ListProfiles(ctx)
			return err
		},
	})
	h.Register(mux)
}

// homeResponse is the service banner returned from GET /.
type homeResponse struct {
	Status        string            `json:"status"`
	Message       string            `json:"message"`
	EnrolledUsers int               `json:"enrolled_users"`
	Endpoints     map[string]string `json:"endpoints"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.app.ListProfiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{
		Status:        "running",
		Message:       "Speaker Recognition Server",
		EnrolledUsers: len(profiles),
		Endpoints: map[string]string{
			"health":         "/ (GET)",
			"enroll":         "/enroll (POST)",
			"predict":        "/predict (POST)",
			"enrolled_users": "/enrolled-users (GET)",
			"delete_user":    "/delete-user/{username} (DELETE)",
		},
	})
}

// enrollResponse reports enrollment progress after a clip upload.
type enrollResponse struct {
	Status             string `json:"status"`
	Message            string `json:"message"`
	Username           string `json:"username"`
	ClipsReceived      int    `json:"clips_received"`
	RequiredClips      int    `json:"required_clips"`
	EnrollmentComplete bool   `json:"enrollment_complete"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeMultipartError(w, r, err)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	if username == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Username is required")
		return
	}

	slot, err := strconv.Atoi(r.FormValue("clip_number"))
	if err != nil || slot < 1 {
		writeErrorMessage(w, http.StatusBadRequest,
			fmt.Sprintf("Valid clip_number (1-%d) is required", s.app.RequiredClips()))
		return
	}

	clip, ok := s.readAudio(w, r)
	if !ok {
		return
	}

	prog, err := s.app.SubmitClip(r.Context(), username, slot, clip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Clip %d/%d received", slot, prog.RequiredClips)
	if prog.Complete {
		msg = fmt.Sprintf("Enrollment complete for %s!", prog.Identity)
	}
	writeJSON(w, http.StatusOK, enrollResponse{
		Status:             "success",
		Message:            msg,
		Username:           prog.Identity,
		ClipsReceived:      prog.ClipsReceived,
		RequiredClips:      prog.RequiredClips,
		EnrollmentComplete: prog.Complete,
	})
}

// predictResponse is the identification verdict for a probe clip.
type predictResponse struct {
	Status          string             `json:"status"`
	Prediction      string             `json:"prediction"`
	Confidence      float64            `json:"confidence"`
	Threshold       float64            `json:"threshold,omitempty"`
	AllSimilarities map[string]float64 `json:"all_similarities,omitempty"`
	Message         string             `json:"message"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeMultipartError(w, r, err)
		return
	}

	clip, ok := s.readAudio(w, r)
	if !ok {
		return
	}

	res, err := s.app.Identify(r.Context(), clip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := predictResponse{
		Status:          "success",
		Prediction:      res.Prediction,
		Confidence:      res.Confidence,
		Threshold:       res.Threshold,
		AllSimilarities: res.AllScores,
	}
	switch {
	case len(res.AllScores) == 0:
		resp.Message = "No enrolled users in system"
	case res.Prediction == identify.Unknown:
		resp.Message = "No match found above threshold"
	default:
		resp.Message = fmt.Sprintf("Matched with %s", res.Prediction)
	}
	writeJSON(w, http.StatusOK, resp)
}

// enrolledUser is one entry in the GET /enrolled-users listing.
type enrolledUser struct {
	Username     string    `json:"username"`
	EnrolledDate time.Time `json:"enrolled_date"`
	ClipsCount   int       `json:"clips_count"`
}

type enrolledUsersResponse struct {
	Status string         `json:"status"`
	Count  int            `json:"count"`
	Users  []enrolledUser `json:"users"`
}

func (s *Server) handleEnrolledUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.app.ListProfiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	users := make([]enrolledUser, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, enrolledUser{
			Username:     p.Identity,
			EnrolledDate: p.EnrolledAt,
			ClipsCount:   p.ClipsCount,
		})
	}
	writeJSON(w, http.StatusOK, enrolledUsersResponse{
		Status: "success",
		Count:  len(users),
		Users:  users,
	})
}

type statusResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	err := s.app.DeleteProfile(r.Context(), username)
	if errors.Is(err, voiceid.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, statusResponse{
			Status:     "error",
			Message:    fmt.Sprintf("User %s not found", strings.ToLower(strings.TrimSpace(username))),
			Suggestion: s.app.Suggest(r.Context(), username),
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("User %s deleted successfully", strings.ToLower(strings.TrimSpace(username))),
	})
}

// readAudio extracts the "audio" multipart file from an already-parsed form.
// On failure it writes the error response and returns ok=false.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "No audio file provided")
		return nil, false
	}
	defer file.Close()

	if header.Filename == "" {
		writeErrorMessage(w, http.StatusBadRequest, "No file selected")
		return nil, false
	}
	if ext := strings.ToLower(filepath.Ext(header.Filename)); !allowedExtensions[ext] {
		writeErrorMessage(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported audio format %q", ext))
		return nil, false
	}

	clip, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("reading upload failed", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "Failed to read uploaded audio")
		return nil, false
	}
	return clip, true
}

// writeMultipartError distinguishes an oversized body from a malformed one.
func (s *Server) writeMultipartError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. Maximum size is %dMB", s.maxUpload>>20))
		return
	}
	s.logger.Debug("multipart parse failed", "path", r.URL.Path, "error", err)
	writeErrorMessage(w, http.StatusBadRequest, "Malformed multipart form")
}

// writeError maps an application error to an HTTP status and JSON envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeErrorMessage(w, status, userMessage(err))
}

// statusFor translates the error taxonomy into HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voiceid.ErrValidation), errors.Is(err, voiceid.ErrTranscode):
		return http.StatusBadRequest
	case errors.Is(err, voiceid.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// userMessage keeps internal error detail out of 5xx responses.
func userMessage(err error) string {
	switch {
	case errors.Is(err, voiceid.ErrTranscode):
		return "Failed to convert uploaded audio. Ensure the file format is supported."
	case errors.Is(err, voiceid.ErrInsufficientData):
		return "Failed to extract embeddings from audio clips"
	case errors.Is(err, voiceid.ErrExtraction):
		return "Failed to process audio"
	case statusFor(err) >= http.StatusInternalServerError:
		return "Server error"
	default:
		return err.Error()
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: msg})
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
