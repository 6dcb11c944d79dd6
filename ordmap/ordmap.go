// Package ordmap implements the ordered hash map/set template of
// spec.md §4.8: a power-of-two probe table of {hash, index} pairs
// pointing into a densely appended, insertion-order linked storage
// array. Grounded on dbm's array-of-slots/bit-packed-page idiom
// (dbm/dbm.go, dbm/bits.go) for the "two parallel arrays, one sparse one
// dense" shape, generalized here with Go generics instead of dbm's
// pre-generics byte-slice tricks.
package ordmap

import (
	"math/bits"

	"go.uber.org/zap"
	"modernc.org/mathutil"
)

const (
	probeStep          = 0x43F82D0B
	defaultSeekBudget  = 96
	maxGrowthAttempts  = 3
	shrinkMinUsedBits  = 8
	shrinkOccupancyDiv = 8
	growOccupancyPct   = 50
)

const emptyIndex = ^uint32(0)

// invalidHashMarker substitutes for a user hash value of exactly 0,
// since 0 is reserved internally to mean "empty probe slot".
const invalidHashMarker = ^uint64(0)

func foldHash(h uint64) uint64 {
	if h == 0 {
		return invalidHashMarker
	}
	return h
}

// probeSlot is one probe-table position. A slot with hash 0 holds no
// entry: the zero value is a never-used slot, and {0, emptyIndex} is a
// hole left by Delete, which lookups probe past.
type probeSlot struct {
	hash uint64
	idx  uint32
}

type entry[K, V any] struct {
	prev, next uint32
	hash       uint64
	key        K
	val        V
	valid      bool
}

// Map is an insertion-order-stable hash map with cuckoo-style additive
// probing and a degrade-under-adversarial-load mode, exactly as spec.md
// §4.8 describes.
type Map[K, V any] struct {
	hashFn func(K) uint64
	eqFn   func(K, K) bool

	probe    []probeSlot
	storage  []entry[K, V]
	usedBits uint
	head     uint32
	tail     uint32
	count    int

	hasCollisions bool
	underAttack   bool

	log *zap.Logger
}

// Option configures a Map at construction.
type Option[K, V any] func(*Map[K, V])

// WithLogger attaches a zap.Logger used to record under_attack
// transitions (spec.md §9's Open Question: logged degrade rather than a
// hard error, matching the source's behavior).
func WithLogger[K, V any](l *zap.Logger) Option[K, V] {
	return func(m *Map[K, V]) { m.log = l }
}

// New returns an empty Map using hashFn to hash keys and eqFn to compare
// them on collision.
func New[K, V any](hashFn func(K) uint64, eqFn func(K, K) bool, opts ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hashFn:   hashFn,
		eqFn:     eqFn,
		usedBits: 3, // capacity 8
		head:     emptyIndex,
		tail:     emptyIndex,
		log:      zap.NewNop(),
	}
	m.probe = make([]probeSlot, 1<<m.usedBits)
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

// Len returns the number of live key/value pairs.
func (m *Map[K, V]) Len() int { return m.count }

func (m *Map[K, V]) mask() uint64 { return uint64(len(m.probe) - 1) }

func (m *Map[K, V]) seekBudget() int {
	return mathutil.Min(int(m.mask()), defaultSeekBudget)
}

func rotation(hash uint64, usedBits uint) uint64 {
	return bits.RotateLeft64(hash, int(usedBits))
}

// findSlot returns the probe-table index holding key's slot (an occupied
// match, or the first empty slot found within budget), and whether an
// occupied match was found.
func (m *Map[K, V]) findSlot(hash uint64, key K) (slotIdx int, found bool) {
	pos := rotation(hash, m.usedBits) & m.mask()
	budget := m.seekBudget()
	collisionsSeen := 0
	for i := 0; i <= budget; i++ {
		ps := &m.probe[pos]
		if ps.hash == 0 {
			if ps.idx != emptyIndex {
				return int(pos), false
			}
			pos = (pos + probeStep) & m.mask() // hole: keep probing
			continue
		}
		e := &m.storage[ps.idx]
		if ps.hash == hash {
			if m.underAttack {
				return int(pos), true
			}
			if e.valid && m.eqFn(e.key, key) {
				return int(pos), true
			}
			m.hasCollisions = true
			collisionsSeen++
			if collisionsSeen > defaultSeekBudget {
				m.enterUnderAttack()
				return int(pos), true
			}
		}
		pos = (pos + probeStep) & m.mask()
	}
	return -1, false
}

func (m *Map[K, V]) enterUnderAttack() {
	if !m.underAttack {
		m.underAttack = true
		m.log.Warn("ordmap: under_attack mode engaged", zap.Int("len", m.count))
	}
}

// Get looks up key, returning its value and whether it was present.
func (m *Map[K, V]) Get(key K) (val V, ok bool) {
	hash := foldHash(m.hashFn(key))
	idx, found := m.findSlot(hash, key)
	if !found {
		return val, false
	}
	e := &m.storage[m.probe[idx].idx]
	return e.val, true
}

func (m *Map[K, V]) linkTail(idx uint32) {
	e := &m.storage[idx]
	e.prev = m.tail
	e.next = emptyIndex
	if m.tail != emptyIndex {
		m.storage[m.tail].next = idx
	} else {
		m.head = idx
	}
	m.tail = idx
}

func (m *Map[K, V]) unlink(idx uint32) {
	e := &m.storage[idx]
	if e.prev != emptyIndex {
		m.storage[e.prev].next = e.next
	} else {
		m.head = e.next
	}
	if e.next != emptyIndex {
		m.storage[e.next].prev = e.prev
	} else {
		m.tail = e.prev
	}
}

// Set inserts key/val, or overwrites val if key is already present.
func (m *Map[K, V]) Set(key K, val V) {
	hash := foldHash(m.hashFn(key))
	for attempt := 0; ; attempt++ {
		idx, found := m.findSlot(hash, key)
		if idx >= 0 {
			if found {
				m.storage[m.probe[idx].idx].val = val
				return
			}
			m.insertAt(idx, hash, key, val)
			return
		}
		if attempt >= maxGrowthAttempts {
			m.enterUnderAttack()
			// Fall back to a linear scan for an empty probe slot so the
			// insert still succeeds under attack, matching spec.md's
			// "continues to function predictably under adversarial
			// load" guarantee.
			m.growTable()
			for i := range m.probe {
				if m.probe[i].hash == 0 {
					m.insertAt(i, hash, key, val)
					return
				}
			}
			continue
		}
		m.growTable()
	}
}

func (m *Map[K, V]) insertAt(slotIdx int, hash uint64, key K, val V) {
	newIdx := uint32(len(m.storage))
	m.storage = append(m.storage, entry[K, V]{hash: hash, key: key, val: val, valid: true})
	m.linkTail(newIdx)
	m.probe[slotIdx] = probeSlot{hash: hash, idx: newIdx}
	m.count++
	if m.occupiedDense()*100 > growOccupancyPct*len(m.probe) {
		m.growTable()
	}
}

func (m *Map[K, V]) occupiedDense() int { return len(m.storage) }

func (m *Map[K, V]) growTable() {
	m.usedBits++
	m.rehash()
}

func (m *Map[K, V]) rehash() {
	newCap := 1 << m.usedBits
	newProbe := make([]probeSlot, newCap)
	newMask := uint64(newCap - 1)
	for i := range m.storage {
		e := &m.storage[i]
		if !e.valid {
			continue
		}
		pos := rotation(e.hash, m.usedBits) & newMask
		for j := 0; j <= int(newMask); j++ {
			if newProbe[pos].hash == 0 {
				newProbe[pos] = probeSlot{hash: e.hash, idx: uint32(i)}
				break
			}
			pos = (pos + probeStep) & newMask
		}
	}
	m.probe = newProbe
}

// Delete removes key if present, reporting whether it was removed.
// Removing the most recently inserted live entry pops the dense storage
// tail; any other removal leaves a tombstone hole that iteration and
// future probes skip over, exactly as spec.md §4.8 describes.
func (m *Map[K, V]) Delete(key K) bool {
	hash := foldHash(m.hashFn(key))
	slotIdx, found := m.findSlot(hash, key)
	if !found {
		return false
	}
	idx := m.probe[slotIdx].idx
	m.unlink(idx)
	m.probe[slotIdx] = probeSlot{hash: 0, idx: emptyIndex}
	m.storage[idx].valid = false
	var zeroK K
	var zeroV V
	m.storage[idx].key = zeroK
	m.storage[idx].val = zeroV
	if int(idx) == len(m.storage)-1 {
		m.storage = m.storage[:idx]
		for len(m.storage) > 0 && !m.storage[len(m.storage)-1].valid {
			m.storage = m.storage[:len(m.storage)-1]
		}
	}
	m.count--
	m.maybeShrink()
	return true
}

func (m *Map[K, V]) maybeShrink() {
	if m.usedBits < shrinkMinUsedBits {
		return
	}
	capacity := 1 << m.usedBits
	if m.count < capacity/shrinkOccupancyDiv {
		m.usedBits--
		m.rehash()
	}
}

// Range visits every live key/value pair in insertion order, stopping
// early if fn returns false. Safe against Delete of the current key
// during iteration (next is read before fn runs).
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	idx := m.head
	for idx != emptyIndex {
		e := &m.storage[idx]
		next := e.next
		if e.valid {
			if !fn(e.key, e.val) {
				return
			}
		}
		idx = next
	}
}

// HasCollisions reports whether any full-hash collision between distinct
// keys has ever occurred.
func (m *Map[K, V]) HasCollisions() bool { return m.hasCollisions }

// UnderAttack reports whether the map has degraded to hash-only equality
// after an adversarial run of collisions.
func (m *Map[K, V]) UnderAttack() bool { return m.underAttack }
