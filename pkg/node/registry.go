package node

import "github.com/librescoot/serialpubsub/pkg/wire"

// Callback is invoked with the payload received on a subscribed topic. The
// slice shares a backing array with every other subscriber dispatched for
// the same inbound packet, so a callback may inspect or mutate bytes in
// place and later subscribers for that packet see the mutation; a callback
// that keeps data beyond the call should copy it. Each inbound packet gets
// a freshly allocated slice.
type Callback func(data []byte)

type subscriber struct {
	id       uint32
	callback Callback
}

type topicSubs struct {
	topic string
	subs  []subscriber
}

// Registry is the topic -> ordered-callback-list table shared by Node and
// PollingNode. It is grounded on EmbeddedSerialFiller_RTOS.cpp's
// Subscribe/Unsubscribe/Publish pattern: subscriber IDs are monotonic and
// never reused, and Node.dispatch takes a Snapshot of the callback list
// under lock before invoking callbacks with the lock released, mirroring the
// Snapshot()-then-iterate pattern used for client fan-out in
// kstaniek-go-ampio-server's hub package. This lets a callback call back
// into Subscribe/Unsubscribe/Publish on the same Node without deadlocking.
type Registry struct {
	topics []*topicSubs
	nextID uint32
}

// NewRegistry returns an empty subscription table.
func NewRegistry() *Registry {
	return &Registry{nextID: 1}
}

func (r *Registry) findTopic(topic string) *topicSubs {
	for _, t := range r.topics {
		if t.topic == topic {
			return t
		}
	}
	return nil
}

// Subscribe registers cb for topic and returns its subscriber ID, unique
// for the lifetime of the Registry. Caller must hold the owning Node's
// mutex.
func (r *Registry) Subscribe(topic string, cb Callback) (uint32, error) {
	if len(topic) > wire.MaxTopicLength {
		return 0, wire.ErrTopicTooLong
	}
	t := r.findTopic(topic)
	if t == nil {
		t = &topicSubs{topic: topic}
		r.topics = append(r.topics, t)
	}
	id := r.nextID
	r.nextID++
	t.subs = append(t.subs, subscriber{id: id, callback: cb})
	return id, nil
}

// Unsubscribe removes the subscriber with the given ID from whichever
// topic it is registered on. Caller must hold the owning Node's mutex.
func (r *Registry) Unsubscribe(id uint32) error {
	for _, t := range r.topics {
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				return nil
			}
		}
	}
	return ErrUnrecognisedSubscriber
}

// UnsubscribeAll drops every subscriber on every topic. Caller must hold
// the owning Node's mutex.
func (r *Registry) UnsubscribeAll() {
	r.topics = nil
}

// Snapshot returns the callbacks currently registered for topic, in
// subscription order, without holding any lock beyond the call itself.
// Caller must hold the owning Node's mutex for the duration of the call;
// the returned slice is safe to range over after releasing it, since
// Snapshot copies rather than aliasing the registry's internal slice.
func (r *Registry) Snapshot(topic string) []Callback {
	t := r.findTopic(topic)
	if t == nil || len(t.subs) == 0 {
		return nil
	}
	out := make([]Callback, len(t.subs))
	for i, s := range t.subs {
		out[i] = s.callback
	}
	return out
}

// HasSubscribers reports whether topic currently has at least one
// subscriber. Caller must hold the owning Node's mutex.
func (r *Registry) HasSubscribers(topic string) bool {
	t := r.findTopic(topic)
	return t != nil && len(t.subs) > 0
}
