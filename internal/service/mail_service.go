package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"moldubot/internal/intent"
	"moldubot/internal/model"
	"moldubot/pkg/logger"
)

var ErrNoCurrentMail = errors.New("no current mail")

const (
	msgNoCurrentMail     = "현재 메일이 없습니다."
	msgEmptyBody         = "본문이 비어 있어 요약할 수 없습니다."
	msgNoKeyFactBody     = "핵심 추출 대상 본문이 없습니다."
	msgRecipientNotFound = "수신자 정보를 본문에서 찾지 못했습니다."

	maxSentenceRunes = 140
)

var (
	// punctuation followed by whitespace, only after a word character so
	// dots inside addresses survive
	sentenceBoundary = regexp.MustCompile(`([가-힣A-Za-z0-9])[.!?]\s+`)
	recipientBlock   = regexp.MustCompile(`(?is)To:\s*(.+?)(?:Cc:|Subject:|From:|\z)`)
	recipientSep     = regexp.MustCompile(`[;,]`)

	keyFactMarkers = []string{"요청", "일정", "회의", "마감", "필요", "확인", "공유", "중요"}
)

// MailStore reads the mailbox.
type MailStore interface {
	LatestMail(ctx context.Context) (*model.Mail, error)
}

// MailService serves the current mail and the text extractions on it. The
// current mail is cached after the first read.
type MailService struct {
	store  MailStore
	logger *zap.Logger

	mu      sync.RWMutex
	current *model.Mail
}

func NewMailService(store MailStore, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{store: store, logger: logger}
}

// ReadCurrentMail fetches the newest mail and makes it current.
func (s *MailService) ReadCurrentMail(ctx context.Context) (*model.Mail, error) {
	m, err := s.store.LatestMail(ctx)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && m == nil) {
		logger.WithTrace(ctx, s.logger).Warn("current mail lookup returned no rows")
		return nil, ErrNoCurrentMail
	}
	if err != nil {
		return nil, fmt.Errorf("read current mail: %w", err)
	}

	s.mu.Lock()
	s.current = m
	s.mu.Unlock()
	return m, nil
}

// CurrentMail returns the cached mail, reading it when nothing is cached.
func (s *MailService) CurrentMail(ctx context.Context) (*model.Mail, error) {
	s.mu.RLock()
	cached := s.current
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return s.ReadCurrentMail(ctx)
}

// Summarize returns the first lineTarget sentences of the current mail.
// lineTarget is clamped to [1,20].
func (s *MailService) Summarize(ctx context.Context, lineTarget int) ([]string, error) {
	m, err := s.CurrentMail(ctx)
	if errors.Is(err, ErrNoCurrentMail) {
		return []string{msgNoCurrentMail}, nil
	}
	if err != nil {
		return nil, err
	}
	sentences := SplitSentences(m.BodyText)
	if len(sentences) == 0 {
		return []string{msgEmptyBody}, nil
	}
	return trimAll(firstN(sentences, ClampLineTarget(lineTarget))), nil
}

// KeyFacts prefers sentences mentioning requests, schedules, deadlines and
// similar markers; without any, it falls back to the leading sentences.
func (s *MailService) KeyFacts(ctx context.Context, limit int) ([]string, error) {
	m, err := s.CurrentMail(ctx)
	if errors.Is(err, ErrNoCurrentMail) {
		return []string{msgNoCurrentMail}, nil
	}
	if err != nil {
		return nil, err
	}
	sentences := SplitSentences(m.BodyText)
	if len(sentences) == 0 {
		return []string{msgNoKeyFactBody}, nil
	}

	var prioritized []string
	for _, sentence := range sentences {
		for _, marker := range keyFactMarkers {
			if strings.Contains(sentence, marker) {
				prioritized = append(prioritized, sentence)
				break
			}
		}
	}
	base := prioritized
	if len(base) == 0 {
		base = sentences
	}
	return trimAll(firstN(base, limit)), nil
}

// Recipients parses the To: header block quoted in the mail body.
func (s *MailService) Recipients(ctx context.Context, limit int) ([]string, error) {
	m, err := s.CurrentMail(ctx)
	if errors.Is(err, ErrNoCurrentMail) {
		return []string{msgNoCurrentMail}, nil
	}
	if err != nil {
		return nil, err
	}
	recipients := ParseRecipients(m.BodyText)
	if len(recipients) == 0 {
		return []string{msgRecipientNotFound}, nil
	}
	return firstN(recipients, limit), nil
}

// ClampLineTarget bounds a summary length to the decomposition range.
func ClampLineTarget(n int) int {
	if n < intent.MinSummaryLineTarget {
		return intent.MinSummaryLineTarget
	}
	if n > intent.MaxSummaryLineTarget {
		return intent.MaxSummaryLineTarget
	}
	return n
}

// SplitSentences splits a body into non-empty lines, then each line at
// sentence punctuation followed by whitespace.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\r", "\n")

	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		last := 0
		for _, m := range sentenceBoundary.FindAllStringSubmatchIndex(line, -1) {
			if part := strings.TrimSpace(line[last:m[3]]); part != "" {
				sentences = append(sentences, part)
			}
			last = m[1]
		}
		if part := strings.TrimSpace(line[last:]); part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

// TrimSentence caps a sentence at 140 runes, ending truncated text with "…".
func TrimSentence(sentence string) string {
	text := strings.TrimSpace(sentence)
	if utf8.RuneCountInString(text) <= maxSentenceRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:maxSentenceRunes-1]), unicode.IsSpace) + "…"
}

// ParseRecipients returns the deduplicated entries of the To: block, which
// ends at Cc:, Subject:, From: or the end of text.
func ParseRecipients(body string) []string {
	normalized := strings.ReplaceAll(body, "\r", "\n")
	m := recipientBlock.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}
	raw := strings.ReplaceAll(m[1], "\n", " ")

	seen := make(map[string]bool)
	var out []string
	for _, part := range recipientSep.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func trimAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = TrimSentence(item)
	}
	return out
}

// firstN keeps at least one item.
func firstN(items []string, n int) []string {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
