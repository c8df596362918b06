package reply

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/internal/retry"
	"mailpilot/pkg/logger"
)

// ThreadLoader loads the full message thread the reply responds to.
type ThreadLoader interface {
	LoadThread(ctx context.Context, userID, threadID string) ([]model.EmailMessage, error)
}

// ProfileStore loads the user's writing-style profile and signature. The two
// are fetched concurrently before generation.
type ProfileStore interface {
	LoadStyle(ctx context.Context, userID string) (string, error)
	LoadSignature(ctx context.Context, userID string) (string, error)
}

// Generator is the AI reply generator. Only ever called through the invoker;
// exhausted retries propagate as a pipeline failure.
type Generator interface {
	GenerateReplies(ctx context.Context, thread []model.EmailMessage, latest model.EmailMessage, profile model.StyleProfile) ([]model.ReplyDraft, error)
}

// SuggestionStore persists validated suggestions as idempotent upserts.
type SuggestionStore interface {
	UpsertSuggestions(ctx context.Context, userID string, suggestions []model.ReplySuggestion) error
}

// AuditLog appends to the append-only audit trail.
type AuditLog interface {
	Append(ctx context.Context, record model.AuditRecord) error
}

const (
	synthesizedConfidence = 0.3
	synthesizedBody       = "Thank you for your email. I have received your message and will get back to you shortly."
)

// Config holds the per-call-site retry policies.
type Config struct {
	LoadPolicy     retry.Policy
	GeneratePolicy retry.Policy
	StorePolicy    retry.Policy
}

func DefaultConfig() Config {
	return Config{
		LoadPolicy:     retry.DefaultPolicy(),
		GeneratePolicy: retry.DefaultPolicy(),
		StorePolicy:    retry.DefaultPolicy(),
	}
}

// Coordinator runs the smart-reply pipeline: thread + profile load, AI
// generation, draft validation with a synthesized fallback, persistence and
// audit.
type Coordinator struct {
	threads  ThreadLoader
	profiles ProfileStore
	gen      Generator
	store    SuggestionStore
	audit    AuditLog
	invoker  *retry.Invoker
	cfg      Config
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewCoordinator(
	threads ThreadLoader,
	profiles ProfileStore,
	gen Generator,
	store SuggestionStore,
	audit AuditLog,
	invoker *retry.Invoker,
	cfg Config,
	log *zap.Logger,
) *Coordinator {
	return &Coordinator{
		threads:  threads,
		profiles: profiles,
		gen:      gen,
		store:    store,
		audit:    audit,
		invoker:  invoker,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Suggest produces validated reply suggestions for a thread. Generation
// failure after exhausted retries is fatal; low-quality drafts are not —
// when none survive validation, exactly one synthesized acknowledgment
// carrying the user's signature is returned so the pipeline never comes
// back empty.
func (c *Coordinator) Suggest(ctx context.Context, userID, threadID string) ([]model.ReplySuggestion, error) {
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("thread_id", threadID),
		zap.String("user_id", userID),
	)

	thread, err := retry.Invoke(ctx, c.invoker, "load-thread", c.cfg.LoadPolicy, func(ctx context.Context) ([]model.EmailMessage, error) {
		return c.threads.LoadThread(ctx, userID, threadID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	if len(thread) == 0 {
		// A reply to nothing is a caller bug, not a transient condition.
		return nil, fmt.Errorf("thread %s has no messages", threadID)
	}
	latest := thread[len(thread)-1]

	profile, err := c.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	drafts, err := retry.Invoke(ctx, c.invoker, "ai-generate-replies", c.cfg.GeneratePolicy, func(ctx context.Context) ([]model.ReplyDraft, error) {
		return c.gen.GenerateReplies(ctx, thread, latest, profile)
	})
	if err != nil {
		return nil, fmt.Errorf("reply generation failed for thread %s: %w", threadID, err)
	}

	suggestions := c.validateDrafts(threadID, drafts, log)
	if len(suggestions) == 0 {
		log.Warn("No generated draft survived validation, synthesizing acknowledgment",
			zap.Int("drafts_generated", len(drafts)),
		)
		suggestions = []model.ReplySuggestion{c.synthesizeAck(threadID, profile.Signature)}
	}

	if err := c.invoker.Invoke(ctx, "store-suggestions", c.cfg.StorePolicy, func(ctx context.Context) error {
		return c.store.UpsertSuggestions(ctx, userID, suggestions)
	}); err != nil {
		return nil, fmt.Errorf("failed to persist suggestions for thread %s: %w", threadID, err)
	}

	c.appendAudit(ctx, userID, threadID, len(drafts), len(suggestions), log)

	log.Info("Reply suggestions produced",
		zap.Int("drafts_generated", len(drafts)),
		zap.Int("suggestions_stored", len(suggestions)),
	)
	return suggestions, nil
}

// loadProfile fetches style and signature concurrently. Join-all: both
// branches always run to completion, and a failed branch fails the join.
func (c *Coordinator) loadProfile(ctx context.Context, userID string) (model.StyleProfile, error) {
	var (
		wg      sync.WaitGroup
		profile model.StyleProfile

		styleErr, sigErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		profile.Style, styleErr = retry.Invoke(ctx, c.invoker, "load-style", c.cfg.LoadPolicy, func(ctx context.Context) (string, error) {
			return c.profiles.LoadStyle(ctx, userID)
		})
	}()
	go func() {
		defer wg.Done()
		profile.Signature, sigErr = retry.Invoke(ctx, c.invoker, "load-signature", c.cfg.LoadPolicy, func(ctx context.Context) (string, error) {
			return c.profiles.LoadSignature(ctx, userID)
		})
	}()
	wg.Wait()

	if styleErr != nil {
		return model.StyleProfile{}, fmt.Errorf("failed to load style profile: %w", styleErr)
	}
	if sigErr != nil {
		return model.StyleProfile{}, fmt.Errorf("failed to load signature: %w", sigErr)
	}
	return profile, nil
}

// validateDrafts drops invalid drafts and stamps the survivors. Per-draft
// validation failure is non-fatal.
func (c *Coordinator) validateDrafts(threadID string, drafts []model.ReplyDraft, log *zap.Logger) []model.ReplySuggestion {
	suggestions := make([]model.ReplySuggestion, 0, len(drafts))
	for i, draft := range drafts {
		if err := ValidateDraft(draft.Content); err != nil {
			log.Warn("Dropping invalid draft",
				zap.Int("draft_index", i),
				zap.String("tone", string(draft.Tone)),
				zap.Error(err),
			)
			continue
		}
		suggestions = append(suggestions, model.ReplySuggestion{
			ID:         c.newID(),
			ThreadID:   threadID,
			Tone:       draft.Tone,
			Content:    draft.Content,
			Confidence: draft.Confidence,
			CreatedAt:  c.now(),
		})
	}
	return suggestions
}

func (c *Coordinator) synthesizeAck(threadID, signature string) model.ReplySuggestion {
	content := synthesizedBody
	if signature != "" {
		content = content + "\n\n" + signature
	}
	return model.ReplySuggestion{
		ID:          c.newID(),
		ThreadID:    threadID,
		Tone:        model.ToneProfessional,
		Content:     content,
		Confidence:  synthesizedConfidence,
		Synthesized: true,
		CreatedAt:   c.now(),
	}
}

// appendAudit is best-effort: an audit write failure is logged, never
// surfaced to the caller.
func (c *Coordinator) appendAudit(ctx context.Context, userID, threadID string, generated, stored int, log *zap.Logger) {
	record := model.AuditRecord{
		ID:        c.newID(),
		UserID:    userID,
		Action:    "reply.suggested",
		Detail:    fmt.Sprintf("thread=%s generated=%d stored=%d", threadID, generated, stored),
		CreatedAt: c.now(),
	}
	if err := c.audit.Append(ctx, record); err != nil {
		log.Warn("Failed to append audit record", zap.Error(err))
	}
}
