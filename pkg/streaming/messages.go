// Package streaming defines the messages delivered from the frame producer
// to every consumer.
package streaming

import (
	"fmt"

	"github.com/OCAP2/tetrad/pkg/core"
)

// Kind tags a Message.
type Kind uint8

// Message kinds. Stop is terminal: it is sent exactly once and always last.
const (
	KindUpdate Kind = iota + 1
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindStop:
		return "stop"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is the unit delivered through a consumer channel.
// Snapshot is set only for KindUpdate.
type Message struct {
	Kind     Kind
	Snapshot *core.FrameSnapshot
}

// Update wraps a captured frame.
func Update(s *core.FrameSnapshot) Message {
	return Message{Kind: KindUpdate, Snapshot: s}
}

// Stop returns the terminal message.
func Stop() Message {
	return Message{Kind: KindStop}
}

// IsStop reports whether m is the terminal message.
func (m Message) IsStop() bool {
	return m.Kind == KindStop
}

func (m Message) String() string {
	if m.Kind == KindUpdate && m.Snapshot != nil {
		return fmt.Sprintf("update frame=%d units=%d ballistics=%d",
			m.Snapshot.Frame, m.Snapshot.UnitCount(), m.Snapshot.BallisticsCount())
	}
	return m.Kind.String()
}
