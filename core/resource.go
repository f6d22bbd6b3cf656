// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// owner destroys the backend objects held by its resources.
type owner interface {
	release(r *Resource)
}

// Resource is a handle to one owned backend object. Value is the object
// itself, released through the context that owns it.
type Resource struct {
	Name  string
	Value interface{}

	owner owner
	once  sync.Once
}

// Close releases the object. Calling it again does nothing.
func (r *Resource) Close() {
	r.once.Do(func() {
		if r.owner != nil {
			r.owner.release(r)
		}
	})
}

// Resources is a stack of owned objects, released newest first.
type Resources struct {
	owner owner
	log   logrus.FieldLogger

	mutex  sync.Mutex
	stack  []*Resource
	closed bool
}

func newResources(o owner, l logrus.FieldLogger) *Resources {
	return &Resources{owner: o, log: l}
}

// Push takes ownership of value. Pushing onto a closed stack releases
// the object immediately.
func (rs *Resources) Push(name string, value interface{}) *Resource {
	r := &Resource{Name: name, Value: value, owner: rs.owner}
	rs.mutex.Lock()
	if rs.closed {
		rs.mutex.Unlock()
		rs.log.WithField("resource", name).Warn("resource pushed after close, releasing")
		r.Close()
		return r
	}
	rs.stack = append(rs.stack, r)
	rs.mutex.Unlock()
	return r
}

// Names lists the owned resources in creation order.
func (rs *Resources) Names() []string {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	names := make([]string, len(rs.stack))
	for i, r := range rs.stack {
		names[i] = r.Name
	}
	return names
}

// Close releases every resource in reverse creation order.
// It is safe to call more than once.
func (rs *Resources) Close() {
	rs.mutex.Lock()
	stack := rs.stack
	rs.stack = nil
	rs.closed = true
	rs.mutex.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].Close()
		rs.log.WithField("resource", stack[i].Name).Debug("resource released")
	}
}
