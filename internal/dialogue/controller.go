package dialogue

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/analytics"
	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/facets"
	"github.com/elchin-rustamov/courtsearch/internal/searcher"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	"github.com/elchin-rustamov/courtsearch/pkg/metrics"
)

// Session states.
const (
	StateAwaitingQuery         = "awaiting_query"
	StateAwaitingClarification = "awaiting_clarification"
	StateReadyToSearch         = "ready_to_search"
)

const sessionTTL = 30 * time.Minute

// Response is one controller turn. Either a clarification question
// (Message plus Options) or a ready-to-run Query is set, never both.
type Response struct {
	SessionID  string          `json:"session_id"`
	State      string          `json:"state"`
	Message    string          `json:"message,omitempty"`
	Field      string          `json:"field,omitempty"`
	Options    []string        `json:"options,omitempty"`
	Query      *searcher.Query `json:"query,omitempty"`
	BestEffort bool            `json:"best_effort,omitempty"`
}

// EventTracker receives dialogue usage events.
type EventTracker interface {
	Track(event interface{})
}

type session struct {
	state      string
	filters    map[string]string
	freeText   string
	pending    string   // field awaiting clarification
	candidates []string // candidate values for the pending field
	rounds     int
	bestEffort bool
	updatedAt  time.Time
}

// Controller owns the clarification dialogue. One instance serves all
// sessions; per-session state lives in an in-memory map.
type Controller struct {
	cfg      config.DialogueConfig
	analyzer analyzer
	facets   *facets.Cache
	tracker  EventTracker
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*session

	logger *slog.Logger
}

func NewController(cfg config.DialogueConfig, fc *facets.Cache, tracker EventTracker, m *metrics.Metrics) *Controller {
	return &Controller{
		cfg:      cfg,
		analyzer: analyzer{cfg: cfg},
		facets:   fc,
		tracker:  tracker,
		metrics:  m,
		sessions: make(map[string]*session),
		logger:   slog.Default().With("component", "dialogue"),
	}
}

// Handle advances a session by one utterance. It either returns a
// clarification question or a query ready for execution. Once a query is
// returned the session starts over.
func (c *Controller) Handle(sessionID, utterance string) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()

	sess, ok := c.sessions[sessionID]
	if !ok {
		sess = &session{state: StateAwaitingQuery, filters: make(map[string]string)}
		c.sessions[sessionID] = sess
	}
	sess.updatedAt = time.Now()

	if sess.state == StateAwaitingClarification {
		return c.handleClarification(sessionID, sess, utterance)
	}
	return c.handleQuery(sessionID, sess, utterance)
}

func (c *Controller) handleQuery(sessionID string, sess *session, utterance string) *Response {
	sess.filters = make(map[string]string)
	sess.freeText = utterance
	sess.rounds = 0
	sess.bestEffort = false

	analysis := c.analyzer.analyze(utterance, c.facets.Snapshot(), nil)
	for field, value := range analysis.Filters {
		sess.filters[field] = value
	}
	sess.freeText = analysis.FreeText

	if field, candidates := firstAmbiguity(analysis.Ambiguous); field != "" {
		return c.askClarification(sessionID, sess, field, candidates)
	}
	return c.finish(sessionID, sess)
}

func (c *Controller) handleClarification(sessionID string, sess *session, reply string) *Response {
	if value, ok := resolveReply(reply, sess.candidates); ok {
		sess.filters[sess.pending] = value
		c.countClarification("resolved")
		c.trackClarification(sessionID, sess.pending, len(sess.candidates), "resolved")
		return c.reanalyze(sessionID, sess)
	}

	if sess.rounds >= c.maxRounds() {
		// Clarification budget exhausted. Take the strongest candidate and
		// answer best-effort rather than looping forever.
		sess.filters[sess.pending] = sess.candidates[0]
		sess.bestEffort = true
		c.countClarification("best_effort")
		c.trackClarification(sessionID, sess.pending, len(sess.candidates), "best_effort")
		return c.reanalyze(sessionID, sess)
	}

	return c.askClarification(sessionID, sess, sess.pending, sess.candidates)
}

// reanalyze re-reads the original utterance with the updated filters. A new
// ambiguity on another field can surface, bounded by the round budget.
func (c *Controller) reanalyze(sessionID string, sess *session) *Response {
	analysis := c.analyzer.analyze(sess.freeText, c.facets.Snapshot(), sess.filters)
	for field, value := range analysis.Filters {
		if _, done := sess.filters[field]; !done {
			sess.filters[field] = value
		}
	}
	if !sess.bestEffort && sess.rounds < c.maxRounds() {
		if field, candidates := firstAmbiguity(analysis.Ambiguous); field != "" {
			return c.askClarification(sessionID, sess, field, candidates)
		}
	}
	return c.finish(sessionID, sess)
}

func (c *Controller) askClarification(sessionID string, sess *session, field string, candidates []string) *Response {
	sess.state = StateAwaitingClarification
	sess.pending = field
	sess.candidates = candidates
	sess.rounds++

	c.countClarification("asked")
	c.trackClarification(sessionID, field, len(candidates), "asked")
	c.logger.Debug("asking clarification",
		"session_id", sessionID,
		"field", field,
		"candidates", len(candidates),
		"round", sess.rounds,
	)

	var b strings.Builder
	b.WriteString(fieldQuestion(field))
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, candidate)
	}
	return &Response{
		SessionID: sessionID,
		State:     StateAwaitingClarification,
		Message:   b.String(),
		Field:     field,
		Options:   candidates,
	}
}

func (c *Controller) finish(sessionID string, sess *session) *Response {
	query := &searcher.Query{
		Text:    sess.freeText,
		Filters: copyFilters(sess.filters),
	}
	resp := &Response{
		SessionID:  sessionID,
		State:      StateReadyToSearch,
		Query:      query,
		BestEffort: sess.bestEffort,
	}

	// The session restarts; a follow-up message is a fresh query.
	sess.state = StateAwaitingQuery
	sess.pending = ""
	sess.candidates = nil
	return resp
}

// resolveReply matches a clarification answer against the offered
// candidates: a 1-based option number, an exact folded match, or a unique
// prefix all count.
func resolveReply(reply string, candidates []string) (string, bool) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", false
	}

	if n, err := strconv.Atoi(reply); err == nil {
		if n >= 1 && n <= len(candidates) {
			return candidates[n-1], true
		}
		return "", false
	}

	for _, candidate := range candidates {
		if textnorm.FoldEqual(reply, candidate) {
			return candidate, true
		}
	}

	var prefixed []string
	for _, candidate := range candidates {
		if textnorm.HasPrefixFold(candidate, reply) {
			prefixed = append(prefixed, candidate)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], true
	}
	return "", false
}

// firstAmbiguity picks the ambiguous field to ask about first, in facet
// field order so the dialogue is deterministic.
func firstAmbiguity(ambiguous map[string][]string) (string, []string) {
	for _, field := range document.FacetFields {
		if candidates, ok := ambiguous[field]; ok {
			return field, candidates
		}
	}
	// Non-facet field ambiguities, if any, in sorted order.
	fields := make([]string, 0, len(ambiguous))
	for field := range ambiguous {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if len(fields) > 0 {
		return fields[0], ambiguous[fields[0]]
	}
	return "", nil
}

func fieldQuestion(field string) string {
	switch field {
	case document.FieldJudge:
		return "Hansı hakimi nəzərdə tutursunuz?"
	case document.FieldCourtName:
		return "Hansı məhkəməni nəzərdə tutursunuz?"
	case document.FieldDistrict:
		return "Hansı rayonu nəzərdə tutursunuz?"
	case document.FieldCaseType:
		return "Hansı iş növünü nəzərdə tutursunuz?"
	case document.FieldDecisionType:
		return "Hansı qərar növünü nəzərdə tutursunuz?"
	case document.FieldYear:
		return "Hansı ili nəzərdə tutursunuz?"
	default:
		return "Zəhmət olmasa dəqiqləşdirin:"
	}
}

func (c *Controller) maxRounds() int {
	if c.cfg.MaxClarificationRounds <= 0 {
		return 2
	}
	return c.cfg.MaxClarificationRounds
}

func (c *Controller) countClarification(resolution string) {
	if c.metrics != nil {
		c.metrics.ClarificationsTotal.WithLabelValues(resolution).Inc()
	}
}

func (c *Controller) trackClarification(sessionID, field string, candidates int, resolution string) {
	if c.tracker == nil {
		return
	}
	c.tracker.Track(analytics.ClarificationEvent{
		SessionID:  sessionID,
		Field:      field,
		Candidates: candidates,
		Resolution: resolution,
		Timestamp:  time.Now().UTC(),
	})
}

func (c *Controller) pruneLocked() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, sess := range c.sessions {
		if sess.updatedAt.Before(cutoff) {
			delete(c.sessions, id)
		}
	}
}

func copyFilters(filters map[string]string) map[string]string {
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		out[k] = v
	}
	return out
}
