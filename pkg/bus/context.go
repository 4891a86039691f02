// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package bus

import (
	"context"
	"sync"

	"github.com/teradata-labs/graphbus/pkg/types"
)

// dispatch is the state of one root publish: its FIFO cascade queue and the
// report the root caller receives.
type dispatch struct {
	mu       sync.Mutex
	queue    []*types.Event
	report   types.DeliveryReport
	finished bool
}

func (d *dispatch) push(ev *types.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, ev)
}

// pop returns the next queued event, or nil and marks the dispatch finished
// when the queue is empty.
func (d *dispatch) pop() *types.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		d.finished = true
		return nil
	}
	ev := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return ev
}

func (d *dispatch) active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.finished
}

func (d *dispatch) record(fn func(r *types.DeliveryReport)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.report)
}

func (d *dispatch) snapshot() types.DeliveryReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.report
	r.Errors = append([]types.DeliveryError(nil), d.report.Errors...)
	return r
}

// frame is attached to the context handed to a handler: the dispatch it
// runs in, the event it is handling and the node it belongs to.
type frame struct {
	d     *dispatch
	event *types.Event
	node  string
}

type frameKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// EventFromContext returns the event being delivered to the handler that
// owns ctx.
func EventFromContext(ctx context.Context) (*types.Event, bool) {
	if f := frameFrom(ctx); f != nil {
		return f.event, true
	}
	return nil, false
}
