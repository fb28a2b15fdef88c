// Package dispute assembles the conversation shown on a dispute: every message exchanged among
// the buyer, the seller and the admin since the dispute was opened.
package dispute

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultGraceWindow absorbs clock skew between the client and the server at dispute creation:
// messages sent this long before the dispute timestamp still belong to it.
const DefaultGraceWindow = 60 * time.Second

// Source is the backend the assembler reads from.
type Source interface {
	GetDispute(ctx context.Context, disputeID string) (Dispute, error)
	GetConversation(ctx context.Context, userA, userB string, auctionID *string) ([]Message, error)
}

type Assembler struct {
	source         Source
	defaultAdminID string
	grace          time.Duration
}

// AssemblerOption cấu hình Assembler
type AssemblerOption func(*Assembler)

// WithGraceWindow overrides DefaultGraceWindow. Negative values are ignored.
func WithGraceWindow(grace time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if grace >= 0 {
			a.grace = grace
		}
	}
}

func NewAssembler(source Source, defaultAdminID string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		source:         source,
		defaultAdminID: defaultAdminID,
		grace:          DefaultGraceWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the thread of a dispute. The pairwise conversations are fetched concurrently;
// any failed fetch fails the whole assembly.
func (a *Assembler) Assemble(ctx context.Context, disputeID string) (Thread, error) {
	d, err := a.source.GetDispute(ctx, disputeID)
	if err != nil {
		return Thread{}, fmt.Errorf("failed to get dispute %s: %w", disputeID, err)
	}

	thread := Thread{
		DisputeID:    d.ID,
		Participants: a.participants(d),
		CreatedAt:    d.CreatedAt,
		Grace:        a.grace,
	}

	pairs := pairsOf(thread.Participants)
	results := make([][]Message, len(pairs))

	g, ctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		g.Go(func() error {
			messages, err := a.source.GetConversation(ctx, pair[0], pair[1], nil)
			if err != nil {
				return fmt.Errorf("failed to get conversation between %s and %s: %w", pair[0], pair[1], err)
			}
			results[i] = messages
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return Thread{}, err
	}

	// một tin nhắn giữa hai người có thể nằm trong hai cuộc hội thoại: giữ bản đầu tiên
	var messages []Message
	seen := make(map[string]struct{})
	for _, batch := range results {
		for _, msg := range batch {
			if _, ok := seen[msg.ID]; ok {
				continue
			}
			seen[msg.ID] = struct{}{}
			if thread.Relevant(msg) {
				messages = append(messages, msg)
			}
		}
	}
	// ties keep fetch order
	slices.SortStableFunc(messages, func(a, b Message) int {
		return a.SentAt.Compare(b.SentAt)
	})
	thread.Messages = messages

	log.Info().
		Str("dispute_id", d.ID).
		Strs("participants", thread.Participants).
		Int("messages", len(messages)).
		Msg("dispute conversation assembled")

	return thread, nil
}

// participants returns buyer, seller and admin without duplicates and without empty ids.
func (a *Assembler) participants(d Dispute) []string {
	adminID := a.defaultAdminID
	if d.ResolvedBy != nil && *d.ResolvedBy != "" {
		adminID = *d.ResolvedBy
	}

	var participants []string
	seen := make(map[string]struct{}, 3)
	for _, id := range []string{d.BuyerID, d.SellerID, adminID} {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	return participants
}

// pairsOf returns every unordered pair of ids.
func pairsOf(ids []string) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			pairs = append(pairs, [2]string{ids[i], ids[j]})
		}
	}
	return pairs
}
