package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/sui"
)

const (
	// EventModule is the Move module that emits reward events.
	EventModule = "core"

	ContributedEvent   = "EContributed"
	UsageRecordedEvent = "EUsageRecorded"

	// maxPageSize is the largest page a fullnode serves for suix_queryEvents.
	maxPageSize = 50
)

// LedgerSource fetches reward events from a Sui fullnode.
type LedgerSource struct {
	rpc sui.RPCClient
}

// NewLedgerSource creates a new ledger-backed event source.
func NewLedgerSource(rpc sui.RPCClient) *LedgerSource {
	return &LedgerSource{rpc: rpc}
}

// FetchContributions implements EventSource.
func (s *LedgerSource) FetchContributions(ctx context.Context, scopeID string, limit int) ([]domain.RawContributionEvent, error) {
	events, err := s.query(ctx, sui.EventTypeTag(scopeID, EventModule, ContributedEvent), limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RawContributionEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, decodeContribution(ev))
	}
	return out, nil
}

// FetchUsages implements EventSource.
func (s *LedgerSource) FetchUsages(ctx context.Context, scopeID string, limit int) ([]domain.RawUsageEvent, error) {
	events, err := s.query(ctx, sui.EventTypeTag(scopeID, EventModule, UsageRecordedEvent), limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RawUsageEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, decodeUsage(ev))
	}
	return out, nil
}

// query pages through events of one type, newest first, until limit is reached.
func (s *LedgerSource) query(ctx context.Context, eventType string, limit int) ([]sui.Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	var (
		all    []sui.Event
		cursor *sui.EventID
	)
	for len(all) < limit {
		pageSize := min(limit-len(all), maxPageSize)
		page, err := s.rpc.QueryEvents(ctx, sui.EventFilter{MoveEventType: eventType}, &sui.QueryOpts{
			Cursor:     cursor,
			Limit:      pageSize,
			Descending: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: query %s: %w", ErrSourceUnavailable, eventType, err)
		}
		if page == nil {
			break
		}

		all = append(all, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil || len(page.Data) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// payload is a parsed event body decoded one field at a time. Fields that
// are present but undecodable, and required fields that are absent, are
// collected in bad and surface on the raw event as Undecodable.
type payload struct {
	fields map[string]json.RawMessage
	bad    []string
}

func parsePayload(raw json.RawMessage) *payload {
	p := &payload{}
	if err := json.Unmarshal(raw, &p.fields); err != nil {
		p.fields = nil
		p.bad = append(p.bad, "parsedJson")
	}
	return p
}

// lookup returns the raw value of key, treating JSON null as absent.
func (p *payload) lookup(key string) (json.RawMessage, bool) {
	v, ok := p.fields[key]
	if !ok || string(bytes.TrimSpace(v)) == "null" {
		return nil, false
	}
	return v, true
}

// str decodes a string field. ok is false when the field is absent or
// undecodable.
func (p *payload) str(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		p.markBad(key)
		return "", false
	}
	return s, true
}

// u64 decodes a Move u64 field. ok is false when the field is absent or
// undecodable.
func (p *payload) u64(key string) (uint64, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}
	var u sui.U64
	if err := json.Unmarshal(v, &u); err != nil {
		p.markBad(key)
		return 0, false
	}
	return uint64(u), true
}

// require marks key bad when its decode did not yield a value.
func (p *payload) require(key string, ok bool) {
	if !ok {
		p.markBad(key)
	}
}

func (p *payload) markBad(key string) {
	if !slices.Contains(p.bad, key) {
		p.bad = append(p.bad, key)
	}
}

// timestamp returns the payload timestamp in seconds, falling back to the
// envelope timestampMs. An unusable payload timestamp is not an error while
// the envelope carries one.
func (p *payload) timestamp(ev sui.Event) int64 {
	if v, ok := p.lookup("timestamp"); ok {
		var ts sui.U64
		if err := json.Unmarshal(v, &ts); err == nil && ts > 0 && uint64(ts) <= math.MaxInt64 {
			return int64(ts)
		}
	}
	return ev.TimestampMs / 1000
}

func decodeContribution(ev sui.Event) domain.RawContributionEvent {
	p := parsePayload(ev.ParsedJSON)

	id, _ := p.str("contribution_id")
	blob, _ := p.str("blob_cid")
	contributor, _ := p.str("contributor")
	pool, _ := p.str("pool_id")
	seal, _ := p.str("seal_hash")
	score, _ := p.u64("truth_score")

	return domain.RawContributionEvent{
		ContributionID: id,
		BlobRef:        blob,
		Contributor:    contributor,
		PoolID:         pool,
		OccurredAt:     p.timestamp(ev),
		IntegrityHash:  seal,
		TruthScore:     int(min(score, math.MaxInt32)),
		TxDigest:       ev.ID.TxDigest,
		EventSeq:       ev.ID.EventSeq,
		Undecodable:    p.bad,
	}
}

func decodeUsage(ev sui.Event) domain.RawUsageEvent {
	p := parsePayload(ev.ParsedJSON)

	pool, _ := p.str("pool_id")
	requester, _ := p.str("requester")
	version, _ := p.u64("version")
	fee, _ := p.u64("fee")
	tokens, ok := p.u64("tokens")
	// tokens prices the reward.
	p.require("tokens", ok)

	return domain.RawUsageEvent{
		PoolID:      pool,
		Version:     version,
		Tokens:      tokens,
		Fee:         fee,
		Requester:   requester,
		OccurredAt:  p.timestamp(ev),
		TxDigest:    ev.ID.TxDigest,
		EventSeq:    ev.ID.EventSeq,
		Undecodable: p.bad,
	}
}
