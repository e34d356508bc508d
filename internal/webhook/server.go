package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/feedback"
)

// Slack rejects replayed requests older than this; so do we.
const maxTimestampSkew = 5 * time.Minute

// Server receives Slack Interactive Components callbacks and exposes the
// feedback summary endpoint.
type Server struct {
	handler       *feedback.Handler
	log           *feedback.Log
	signingSecret string
	logger        *slog.Logger
	now           func() time.Time
}

func NewServer(handler *feedback.Handler, log *feedback.Log, signingSecret string, logger *slog.Logger) *Server {
	return &Server{
		handler:       handler,
		log:           log,
		signingSecret: signingSecret,
		logger:        logger,
		now:           time.Now,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/slack/feedback", s.handleFeedback)
	r.Get("/slack/feedback/summary", s.handleSummary)
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	return r
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}

	if !s.verifySignature(r, body) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	payload, err := decodePayload(r, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Info("feedback payload received", "type", payload.Type)

	record, err := s.handler.Process(r.Context(), payload)
	if err != nil {
		s.logger.Error("feedback processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process feedback"})
		return
	}

	writeJSON(w, http.StatusOK, ackMessage(record))
}

// verifySignature checks the v0 HMAC-SHA256 scheme over "v0:{ts}:{body}".
// An unset secret skips verification, matching local development use.
func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	if s.signingSecret == "" {
		s.logger.Warn("signing secret not set, skipping signature verification")
		return true
	}

	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	if timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if math.Abs(s.now().Sub(time.Unix(ts, 0)).Seconds()) > maxTimestampSkew.Seconds() {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.signingSecret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// decodePayload accepts both raw JSON and Slack's form-urlencoded `payload`.
func decodePayload(r *http.Request, body []byte) (feedback.SlackPayload, error) {
	var payload feedback.SlackPayload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.Unmarshal(body, &payload); err != nil {
			return payload, fmt.Errorf("invalid JSON payload")
		}
		return payload, nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return payload, fmt.Errorf("invalid form body")
	}
	raw := values.Get("payload")
	if raw == "" {
		return payload, fmt.Errorf("No payload found")
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, fmt.Errorf("invalid payload JSON")
	}
	return payload, nil
}

// ackMessage is the ephemeral response Slack shows to the pressing user.
func ackMessage(record domain.Feedback) map[string]any {
	emoji, text := "👎", "フィードバックありがとうございます！興味なしとして記録しました。"
	if record.Feedback == domain.FeedbackInterested {
		emoji, text = "👍", "フィードバックありがとうございます！興味ありとして記録しました。"
	}

	title := record.Article.Title
	if len([]rune(title)) > 100 {
		title = string([]rune(title)[:100])
	}

	return map[string]any{
		"response_type": "ephemeral",
		"text":          fmt.Sprintf("%s %s", emoji, text),
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("%s *%sさん、フィードバックありがとうございます！*\n\n_%s_\n\n%s\n\n継続学習システムでフィルター改善に活用させていただきます。",
						emoji, record.User.Name, title, text),
				},
			},
		},
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	summary, err := s.log.Summarize(days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	secret := "not_configured"
	if s.signingSecret != "" {
		secret = "configured"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "ok",
		"service":      "paperdigest feedback server",
		"slack_secret": secret,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "paperdigest feedback server",
		"endpoints": map[string]string{
			"/slack/feedback":         "POST - Slack Interactive Components webhook",
			"/slack/feedback/summary": "GET - Feedback statistics",
			"/health":                 "GET - Health check",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
