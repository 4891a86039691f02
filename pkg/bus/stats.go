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
	"sort"
	"sync/atomic"
	"time"

	"github.com/teradata-labs/graphbus/pkg/types"
)

// Counters is a snapshot of the bus-wide counters.
type Counters struct {
	Published     int64
	Delivered     int64
	Errors        int64
	CascadeAborts int64
}

// topicCounters holds per-topic statistics.
type topicCounters struct {
	topic          string
	totalPublished atomic.Int64
	totalDelivered atomic.Int64
	totalErrors    atomic.Int64
	lastPublishAt  atomic.Value // time.Time
}

func (tc *topicCounters) stats() types.TopicStats {
	s := types.TopicStats{
		Topic:          tc.topic,
		TotalPublished: tc.totalPublished.Load(),
		TotalDelivered: tc.totalDelivered.Load(),
		TotalErrors:    tc.totalErrors.Load(),
	}
	if val := tc.lastPublishAt.Load(); val != nil {
		if t, ok := val.(time.Time); ok {
			s.LastPublishAt = t
		}
	}
	return s
}

// Stats returns the bus-wide counters.
func (b *MessageBus) Stats() Counters {
	return Counters{
		Published:     b.totalPublished.Load(),
		Delivered:     b.totalDelivered.Load(),
		Errors:        b.totalErrors.Load(),
		CascadeAborts: b.cascadeAborts.Load(),
	}
}

// TopicStats returns statistics for one concrete topic.
func (b *MessageBus) TopicStats(topic string) (types.TopicStats, bool) {
	tc, ok := b.topics.Get(topic)
	if !ok {
		return types.TopicStats{}, false
	}
	return tc.stats(), true
}

// AllTopicStats returns statistics for every topic published so far, sorted
// by topic.
func (b *MessageBus) AllTopicStats() []types.TopicStats {
	out := make([]types.TopicStats, 0, b.topics.Len())
	for _, tc := range b.topics.Seq2() {
		out = append(out, tc.stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

func (b *MessageBus) topicCounters(topic string) *topicCounters {
	return b.topics.GetOrCreate(topic, func() *topicCounters {
		return &topicCounters{topic: topic}
	})
}
