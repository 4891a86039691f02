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
package csync

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_GetSet(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("/orders", 1)

	v, ok := m.Get("/orders")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = m.Get("/missing")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMap_GetOrCreateRunsOnce(t *testing.T) {
	m := NewMap[string, *int64]()
	var created atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter := m.GetOrCreate("/orders", func() *int64 {
				created.Add(1)
				return new(int64)
			})
			atomic.AddInt64(counter, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	counter, _ := m.Get("/orders")
	assert.Equal(t, int64(32), atomic.LoadInt64(counter))
}

func TestMap_Seq2(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	sum := 0
	for _, v := range m.Seq2() {
		sum += v
	}
	assert.Equal(t, 3, sum)
}
