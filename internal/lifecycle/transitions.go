// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/olegiv/ocms-pages/internal/model"
)

// Event is a lifecycle action applied to a page's status.
type Event string

// Lifecycle events
const (
	EventPublish    Event = "publish"
	EventSchedule   Event = "schedule"
	EventUnpublish  Event = "unpublish"
	EventUnschedule Event = "unschedule"
	EventArchive    Event = "archive"
	EventUnarchive  Event = "unarchive"
	EventEdit       Event = "edit"
)

// Transition is one allowed status change.
type Transition struct {
	Src   model.PageStatus
	Event Event
	Dst   model.PageStatus
}

// Transitions lists every allowed status change. Self transitions (edit,
// republish, reschedule) are allowed and leave the status unchanged.
var Transitions = []Transition{
	{model.PageStatusDraft, EventPublish, model.PageStatusPublished},
	{model.PageStatusScheduled, EventPublish, model.PageStatusPublished},
	{model.PageStatusPublished, EventPublish, model.PageStatusPublished},

	{model.PageStatusDraft, EventSchedule, model.PageStatusScheduled},
	{model.PageStatusScheduled, EventSchedule, model.PageStatusScheduled},

	{model.PageStatusPublished, EventUnpublish, model.PageStatusDraft},
	{model.PageStatusScheduled, EventUnschedule, model.PageStatusDraft},

	{model.PageStatusDraft, EventArchive, model.PageStatusArchived},
	{model.PageStatusPublished, EventArchive, model.PageStatusArchived},
	{model.PageStatusScheduled, EventArchive, model.PageStatusArchived},
	{model.PageStatusArchived, EventUnarchive, model.PageStatusDraft},

	{model.PageStatusDraft, EventEdit, model.PageStatusDraft},
	{model.PageStatusPublished, EventEdit, model.PageStatusPublished},
	{model.PageStatusScheduled, EventEdit, model.PageStatusScheduled},
}

// events groups Transitions by event and destination for looplab/fsm.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range Transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{Name: k.event, Src: grouped[k], Dst: k.dst})
	}
	return out
}

// Apply returns the status a page moves to when event is applied in status
// current, or *model.TransitionError if the event is not allowed.
//
// looplab/fsm is stateful, so a short-lived machine is created per call.
func Apply(ctx context.Context, current model.PageStatus, event Event) (model.PageStatus, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &noTransition) && noTransition.Err == nil {
			return current, nil
		}
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) {
			return "", &model.TransitionError{Event: string(event), Current: current}
		}
		return "", err
	}
	return model.PageStatus(machine.Current()), nil
}
