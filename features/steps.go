package features

import (
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/wrapperspb"

	runtime "github.com/benjaminabbitt/angzarr-runtime"
	"github.com/benjaminabbitt/angzarr-runtime/examples/counter"
)

// counterContext carries one scenario's aggregate, its accumulated event
// history, and the outcome of the last command handled.
type counterContext struct {
	agg      *runtime.Aggregate[counter.State]
	cover    *runtime.Cover
	events   *runtime.EventBook
	lastResp *runtime.BusinessResponse
	lastErr  error
}

func InitCounterSteps(ctx *godog.ScenarioContext) {
	c := &counterContext{}

	ctx.Step(`^a fresh counter aggregate$`, c.givenFreshAggregate)
	ctx.Step(`^I increment the counter by (\d+)$`, c.whenIncrementBy)
	ctx.Step(`^the business response has (\d+) event page at sequence (\d+)$`, c.thenResponseHasEventPageAtSequence)
	ctx.Step(`^the counter total is (\d+)$`, c.thenCounterTotalIs)
	ctx.Step(`^the command is rejected$`, c.thenCommandIsRejected)
}

func (c *counterContext) givenFreshAggregate() error {
	agg, err := counter.New()
	if err != nil {
		return err
	}
	c.agg = agg
	c.cover = runtime.NewCover(counter.Domain, uuid.New(), "")
	c.events = nil
	c.lastResp = nil
	c.lastErr = nil
	return nil
}

func (c *counterContext) whenIncrementBy(by int) error {
	cmd := runtime.NewCommandBook(c.cover, runtime.MustPack(counter.NewIncrement(int32(by))))
	resp, err := c.agg.Handle(runtime.ContextualCommand{Command: cmd, Events: c.events})
	c.lastResp = resp
	c.lastErr = err
	if err == nil {
		if c.events == nil {
			c.events = &runtime.EventBook{Cover: c.cover}
		}
		c.events.Pages = append(c.events.Pages, resp.Events.Pages...)
		c.events.NextSequence = resp.Events.NextSequence
	}
	return nil
}

func (c *counterContext) thenResponseHasEventPageAtSequence(count, sequence int) error {
	if c.lastErr != nil {
		return fmt.Errorf("expected success, got error: %w", c.lastErr)
	}
	if len(c.lastResp.Events.Pages) != count {
		return fmt.Errorf("expected %d event pages, got %d", count, len(c.lastResp.Events.Pages))
	}
	if c.lastResp.Events.Pages[0].Sequence != uint64(sequence) {
		return fmt.Errorf("expected sequence %d, got %d", sequence, c.lastResp.Events.Pages[0].Sequence)
	}
	return nil
}

func (c *counterContext) thenCounterTotalIs(expected int64) error {
	if c.events == nil {
		return fmt.Errorf("no events recorded")
	}
	var total int64
	for _, page := range c.events.Pages {
		var incremented wrapperspb.Int64Value
		if err := runtime.Unpack(page.Event, &incremented); err != nil {
			return err
		}
		total += incremented.Value
	}
	if total != expected {
		return fmt.Errorf("expected total %d, got %d", expected, total)
	}
	return nil
}

func (c *counterContext) thenCommandIsRejected() error {
	if c.lastErr == nil {
		return fmt.Errorf("expected command to be rejected, but it succeeded")
	}
	if _, ok := c.lastErr.(*runtime.CommandRejectedError); !ok {
		return fmt.Errorf("expected a CommandRejectedError, got %T", c.lastErr)
	}
	return nil
}
