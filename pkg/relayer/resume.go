// Copyright 2025 Omnilock Labs
//
// Resume Controller
// On startup, inspect the message store and unstick transient states so a
// crash never strands a message. Crash-safe resume is the shutdown story:
// there is no graceful-shutdown path to get right instead.

package relayer

import (
	"context"

	"github.com/omnilock/escrow-relayer/pkg/database"
)

// Resume logs in-flight message counts per state and promotes every
// sent_to_dest row to executed. The destination result is already persisted
// for those rows; promotion lets settlement proceed without re-executing.
func (p *Processor) Resume(ctx context.Context) error {
	for _, state := range database.ResumeOrder {
		msgs, err := p.messages.GetByState(ctx, state)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			continue
		}

		p.logger.Printf("Resuming %d in-flight messages in state %s", len(msgs), state)

		if state != database.StateSentToDest {
			continue
		}
		for _, msg := range msgs {
			if err := p.messages.UpdateState(ctx, msg.Nonce, database.StateExecuted, nil); err != nil {
				return err
			}
			p.logger.Printf("Promoted sent_to_dest -> executed on resume nonce=%d", msg.Nonce)
		}
	}
	return nil
}
