// Package fixtures seeds a stub ledger with a deterministic reward history
// for demos and end-to-end tests.
package fixtures

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mr-tron/base58"

	"reward-ledger/internal/ingestion"
	"reward-ledger/internal/sui"
	"reward-ledger/internal/sui/stub"
)

// ScopeID is the package id the fixture events are published under.
var ScopeID = address("fixture-package")

// Fixture actors.
var (
	Alice = address("alice")
	Bob   = address("bob")
	Carol = address("carol")
)

// Fixture event counts.
const (
	Contributions = 6
	Usages        = 4
	Malformed     = 1
)

type contribution struct {
	actor   string
	daysAgo int
	blob    string
	truth   int
}

type usage struct {
	actor   string
	daysAgo int
	tokens  uint64
	fee     uint64
}

// LoadLedger adds the fixture events to rpc, timestamped relative to now.
// Events are added oldest first so descending queries return newest first.
func LoadLedger(rpc *stub.RPCClient, now time.Time) {
	contribs := []contribution{
		{actor: Alice, daysAgo: 45, blob: "bafybeialicearchive", truth: 90},
		{actor: Bob, daysAgo: 20, blob: "bafybeibobweather", truth: 72},
		{actor: Alice, daysAgo: 12, blob: "bafybeialicemedical", truth: 95},
		{actor: Carol, daysAgo: 6, blob: "bafybeicarolimages", truth: 60},
		{actor: Alice, daysAgo: 3, blob: "bafybeialicetext", truth: 88},
		{actor: Bob, daysAgo: 1, blob: "bafybeibobaudio", truth: 80},
		// Missing contributor; the normalizer skips it.
		{daysAgo: 2, blob: "bafybeiorphan", truth: 50},
	}
	usages := []usage{
		{actor: Carol, daysAgo: 25, tokens: 12_000, fee: 1_200},
		{actor: Bob, daysAgo: 9, tokens: 2_500, fee: 250},
		{actor: Alice, daysAgo: 4, tokens: 40_000, fee: 4_000},
		{actor: Carol, daysAgo: 0, tokens: 800, fee: 80},
	}

	contributedType := sui.EventTypeTag(ScopeID, ingestion.EventModule, ingestion.ContributedEvent)
	usageType := sui.EventTypeTag(ScopeID, ingestion.EventModule, ingestion.UsageRecordedEvent)

	for i, c := range contribs {
		at := now.Add(-time.Duration(c.daysAgo) * 24 * time.Hour)
		body := map[string]any{
			"contribution_id": address(fmt.Sprintf("contribution-%d", i)),
			"blob_cid":        c.blob,
			"pool_id":         address("pool"),
			"timestamp":       strconv.FormatInt(at.Unix(), 10),
			"seal_hash":       hex.EncodeToString(hash(c.blob)),
			"truth_score":     c.truth,
		}
		if c.actor != "" {
			body["contributor"] = c.actor
		}
		rpc.AddEvent(event(contributedType, fmt.Sprintf("c%d", i), body, at))
	}

	for i, u := range usages {
		at := now.Add(-time.Duration(u.daysAgo) * 24 * time.Hour)
		body := map[string]any{
			"pool_id":   address("pool"),
			"version":   "1",
			"tokens":    strconv.FormatUint(u.tokens, 10),
			"fee":       strconv.FormatUint(u.fee, 10),
			"requester": u.actor,
			"timestamp": strconv.FormatInt(at.Unix(), 10),
		}
		rpc.AddEvent(event(usageType, fmt.Sprintf("u%d", i), body, at))
	}
}

func event(eventType, seed string, body map[string]any, at time.Time) sui.Event {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("fixtures: marshal event body: %v", err))
	}
	return sui.Event{
		ID: sui.EventID{
			TxDigest: base58.Encode(hash(seed)),
			EventSeq: "0",
		},
		PackageID:         ScopeID,
		TransactionModule: ingestion.EventModule,
		Type:              eventType,
		ParsedJSON:        raw,
		TimestampMs:       at.UnixMilli(),
	}
}

// address returns a 32-byte hex account address derived from seed.
func address(seed string) string {
	return "0x" + hex.EncodeToString(hash(seed))
}

func hash(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}
