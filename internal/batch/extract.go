package batch

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"salespipe/internal/deadletter"
	"salespipe/internal/model"
	"salespipe/internal/queue"
)

// RecordSet is the normalized output of one pull: well-formed events in
// arrival order (the queue does not guarantee timestamp order).
type RecordSet struct {
	Events    []model.SalesEvent
	Malformed int
}

func (r RecordSet) Empty() bool { return len(r.Events) == 0 }

// Extractor pulls a bounded batch from the subscription and decodes it.
// Malformed entries are dead-lettered and skipped; they never abort the
// batch.
type Extractor struct {
	sub  queue.Subscription
	dead deadletter.Writer // nil disables dead-lettering
}

func NewExtractor(sub queue.Subscription, dead deadletter.Writer) *Extractor {
	return &Extractor{sub: sub, dead: dead}
}

// Pull never fails fatally. A transport failure is logged and yields an
// empty set so the orchestrator can short-circuit the run.
func (e *Extractor) Pull(ctx context.Context, max int) RecordSet {
	msgs, err := e.sub.Pull(ctx, max)
	if err != nil {
		log.Printf("extract: pull failed, yielding empty batch: %v", err)
		return RecordSet{}
	}
	if len(msgs) == 0 {
		log.Printf("extract: no messages")
		return RecordSet{}
	}

	var set RecordSet
	for _, m := range msgs {
		raw, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			e.reject(m, "invalid base64")
			set.Malformed++
			continue
		}
		ev, err := model.DecodeEvent(raw)
		if err != nil {
			e.reject(m, "invalid json")
			set.Malformed++
			continue
		}
		set.Events = append(set.Events, ev)
	}

	// Offsets are committed once per batch, after decode. Malformed
	// messages are committed too; they were preserved above first.
	if err := e.sub.Commit(); err != nil {
		log.Printf("extract: commit failed, batch may redeliver: %v", err)
	}
	return set
}

func (e *Extractor) reject(m queue.Message, reason string) {
	log.Printf("extract: dropping %s: %s", m.ID, reason)
	if e.dead == nil {
		return
	}
	entry := deadletter.Entry{
		MessageID: m.ID,
		Payload:   m.Data,
		Reason:    reason,
		TS:        time.Now().UTC().Unix(),
	}
	if err := e.dead.Append(entry); err != nil {
		log.Printf("extract: dead-letter append failed for %s: %v", m.ID, err)
	}
}
