package security

import (
	"testing"

	"github.com/stretchr/testify/suite"

	audit "wishguard/pkg/platform/audit"
)

type RingBufferSuite struct {
	suite.Suite
}

func TestRingBufferSuite(t *testing.T) {
	suite.Run(t, new(RingBufferSuite))
}

func event(desc string) audit.SecurityEvent {
	return audit.SecurityEvent{Type: audit.EventBotDetected, Description: desc}
}

func (s *RingBufferSuite) TestFIFO() {
	b := NewRingBuffer(4)
	b.Enqueue(event("a"))
	b.Enqueue(event("b"))
	b.Enqueue(event("c"))

	batch := b.DequeueBatch(2)
	s.Require().Len(batch, 2)
	s.Equal("a", batch[0].Description)
	s.Equal("b", batch[1].Description)
	s.Equal(1, b.Len())
}

func (s *RingBufferSuite) TestOverflowDropsOldest() {
	b := NewRingBuffer(2)
	s.False(b.Enqueue(event("a")))
	s.False(b.Enqueue(event("b")))
	s.True(b.Enqueue(event("c")))

	s.Equal(int64(1), b.Dropped())
	batch := b.DequeueBatch(10)
	s.Require().Len(batch, 2)
	s.Equal("b", batch[0].Description)
	s.Equal("c", batch[1].Description)
}

func (s *RingBufferSuite) TestRequeue() {
	s.Run("failed batch returns to the front", func() {
		b := NewRingBuffer(4)
		b.Enqueue(event("a"))
		b.Enqueue(event("b"))
		b.Enqueue(event("c"))
		batch := b.DequeueBatch(2)
		b.Requeue(batch)

		all := b.DequeueBatch(10)
		s.Require().Len(all, 3)
		s.Equal("a", all[0].Description)
		s.Equal("c", all[2].Description)
	})

	s.Run("requeue beyond capacity counts drops", func() {
		b := NewRingBuffer(2)
		b.Enqueue(event("x"))
		b.Enqueue(event("y"))
		b.Requeue([]audit.SecurityEvent{event("a"), event("b")})
		s.Equal(int64(2), b.Dropped())
		s.Equal(2, b.Len())
	})
}

func (s *RingBufferSuite) TestEmpty() {
	b := NewRingBuffer(0)
	s.Nil(b.DequeueBatch(5))
	s.Equal(0, b.Len())
}
