// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

// auditLog tracks recently seen message identifiers per producer for
// duplicate detection. Depth bounds how many identifiers are remembered per
// producer; maxProducers bounds how many producers are tracked at once.
// Callers hold the destination lock.
type auditLog struct {
	depth        int
	maxProducers int
	producers    map[string]*idWindow
	order        []string
}

type idWindow struct {
	ids  []string
	seen map[string]struct{}
	next int
}

func newAuditLog(depth, maxProducers int) *auditLog {
	if depth <= 0 {
		depth = DefaultMaxAuditDepth
	}
	if maxProducers <= 0 {
		maxProducers = DefaultMaxProducersToAudit
	}
	return &auditLog{
		depth:        depth,
		maxProducers: maxProducers,
		producers:    make(map[string]*idWindow),
	}
}

// duplicate records the identifier under the producer's window and reports
// whether it was already present. When the producer cap is reached, the
// oldest tracked producer is evicted.
func (a *auditLog) duplicate(producer, id string) bool {
	w, ok := a.producers[producer]
	if !ok {
		if len(a.order) >= a.maxProducers {
			oldest := a.order[0]
			a.order = a.order[1:]
			delete(a.producers, oldest)
		}
		w = &idWindow{
			ids:  make([]string, a.depth),
			seen: make(map[string]struct{}, a.depth),
		}
		a.producers[producer] = w
		a.order = append(a.order, producer)
	}

	if _, dup := w.seen[id]; dup {
		return true
	}
	if evicted := w.ids[w.next]; evicted != "" {
		delete(w.seen, evicted)
	}
	w.ids[w.next] = id
	w.seen[id] = struct{}{}
	w.next = (w.next + 1) % len(w.ids)
	return false
}
