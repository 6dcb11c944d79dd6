// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package list implements a doubly-linked list template, as described in
// spec.md §4.6. Unlike the array, map, and string containers, a List
// never allocates: it only ever links and unlinks existing nodes. Each
// Node carries its value in an unexported field that only NewNode sets,
// so a caller's struct is not linked in place by embedding a Node in it.
package list

// Node is a list element: the link pair plus the value it carries. Create
// one with NewNode; the zero value has nil links and is not ready for use.
type Node[T any] struct {
	prev, next *Node[T]
	owner      T
}

func (n *Node[T]) selfLink() {
	n.prev, n.next = n, n
}

// List is an intrusive list head. The zero value is an empty, ready to
// use list.
type List[T any] struct {
	head Node[T]
	len  int
}

// New returns an empty List.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.head.selfLink()
	return l
}

func (l *List[T]) ensureInit() {
	if l.head.prev == nil {
		l.head.selfLink()
	}
}

// NewNode wraps value in a detached Node ready to be pushed onto a List.
func NewNode[T any](value T) *Node[T] {
	n := &Node[T]{owner: value}
	n.selfLink()
	return n
}

// Value returns the value embedded in n.
func (n *Node[T]) Value() T { return n.owner }

func (l *List[T]) insertAfter(at, n *Node[T]) {
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
	l.len++
}

// Push appends n to the tail of l.
func (l *List[T]) Push(n *Node[T]) {
	l.ensureInit()
	l.insertAfter(l.head.prev, n)
}

// Unshift prepends n to the head of l.
func (l *List[T]) Unshift(n *Node[T]) {
	l.ensureInit()
	l.insertAfter(&l.head, n)
}

func (l *List[T]) unlink(n *Node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.selfLink() // idempotent: a detached node points to itself
	l.len--
}

// Pop removes and returns the tail node, or nil if l is empty.
func (l *List[T]) Pop() *Node[T] {
	l.ensureInit()
	if l.IsEmpty() {
		return nil
	}
	n := l.head.prev
	l.unlink(n)
	return n
}

// Shift removes and returns the head node, or nil if l is empty.
func (l *List[T]) Shift() *Node[T] {
	l.ensureInit()
	if l.IsEmpty() {
		return nil
	}
	n := l.head.next
	l.unlink(n)
	return n
}

// Remove unlinks n from whichever list it is on. Safe to call more than
// once: a node that is already detached (self-linked) is a no-op.
func (l *List[T]) Remove(n *Node[T]) {
	if n.prev == n && n.next == n {
		return
	}
	l.unlink(n)
}

// IsEmpty reports whether l has no elements.
func (l *List[T]) IsEmpty() bool {
	l.ensureInit()
	return l.head.next == &l.head
}

// Any reports whether l has at least one element.
func (l *List[T]) Any() bool { return !l.IsEmpty() }

// Len returns the number of elements currently on l.
func (l *List[T]) Len() int { return l.len }

// Root returns the sentinel head node, for callers that want to walk the
// ring manually (Root().Next() ... until Root() again).
func (l *List[T]) Root() *Node[T] {
	l.ensureInit()
	return &l.head
}

// Next returns the node following n (the head sentinel if n is the tail).
func (n *Node[T]) Next() *Node[T] { return n.next }

// Prev returns the node preceding n (the head sentinel if n is the head).
func (n *Node[T]) Prev() *Node[T] { return n.prev }

// Each walks l from head to tail, calling fn(value) for each element.
// fn's successor is read before fn runs, so fn may safely Remove the
// node holding the current value from l. Each stops early if fn returns
// false.
func (l *List[T]) Each(fn func(T) bool) {
	l.ensureInit()
	for n := l.head.next; n != &l.head; {
		next := n.next // pre-read: fn may remove n
		if !fn(n.owner) {
			return
		}
		n = next
	}
}
