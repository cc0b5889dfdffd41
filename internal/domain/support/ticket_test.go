package support

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTicket(t *testing.T, priority TicketPriority) *Ticket {
	t.Helper()
	ticket, err := NewTicket(uuid.New(), "Cannot log in", "user@example.com", priority)
	require.NoError(t, err)
	return ticket
}

func TestNewTicket(t *testing.T) {
	t.Run("defaults to normal priority and open status", func(t *testing.T) {
		ticket := newTestTicket(t, "")
		assert.Equal(t, TicketStatusOpen, ticket.Status)
		assert.Equal(t, PriorityNormal, ticket.Priority)

		events := ticket.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTicketCreated, events[0].EventType())
	})

	t.Run("rejects empty subject", func(t *testing.T) {
		_, err := NewTicket(uuid.New(), "   ", "user@example.com", PriorityNormal)
		assert.Error(t, err)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		_, err := NewTicket(uuid.New(), "Subject", "user@example.com", "critical")
		assert.Error(t, err)
	})
}

func TestTicketTransitions(t *testing.T) {
	now := time.Now()

	allowed := []struct {
		from, to TicketStatus
	}{
		{TicketStatusOpen, TicketStatusInProgress},
		{TicketStatusOpen, TicketStatusWaitingCustomer},
		{TicketStatusOpen, TicketStatusResolved},
		{TicketStatusInProgress, TicketStatusWaitingCustomer},
		{TicketStatusInProgress, TicketStatusResolved},
		{TicketStatusWaitingCustomer, TicketStatusInProgress},
		{TicketStatusResolved, TicketStatusClosed},
	}
	for _, tc := range allowed {
		t.Run(string(tc.from)+" to "+string(tc.to), func(t *testing.T) {
			ticket := newTestTicket(t, PriorityNormal)
			ticket.Status = tc.from
			require.NoError(t, ticket.TransitionTo(tc.to, now))
			assert.Equal(t, tc.to, ticket.Status)
		})
	}

	denied := []struct {
		from, to TicketStatus
	}{
		{TicketStatusOpen, TicketStatusClosed},
		{TicketStatusWaitingCustomer, TicketStatusResolved},
		{TicketStatusWaitingCustomer, TicketStatusClosed},
		{TicketStatusResolved, TicketStatusOpen},
		{TicketStatusResolved, TicketStatusInProgress},
		{TicketStatusClosed, TicketStatusOpen},
		{TicketStatusClosed, TicketStatusResolved},
	}
	for _, tc := range denied {
		t.Run(string(tc.from)+" to "+string(tc.to)+" denied", func(t *testing.T) {
			ticket := newTestTicket(t, PriorityNormal)
			ticket.Status = tc.from
			err := ticket.TransitionTo(tc.to, now)
			require.Error(t, err)
			assert.Equal(t, tc.from, ticket.Status)
		})
	}

	t.Run("resolve stamps resolved_at and close stamps closed_at", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityNormal)
		require.NoError(t, ticket.TransitionTo(TicketStatusResolved, now))
		require.NotNil(t, ticket.ResolvedAt)

		closedAt := now.Add(time.Hour)
		require.NoError(t, ticket.TransitionTo(TicketStatusClosed, closedAt))
		require.NotNil(t, ticket.ClosedAt)
		assert.Equal(t, closedAt, *ticket.ClosedAt)
	})

	t.Run("unknown target status rejected", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityNormal)
		assert.Error(t, ticket.TransitionTo("archived", now))
	})
}

func TestTicketSLA(t *testing.T) {
	t.Run("deadline follows priority window", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityUrgent)
		assert.Equal(t, ticket.CreatedAt.Add(2*time.Hour), ticket.SLADeadline())

		low := newTestTicket(t, PriorityLow)
		assert.Equal(t, low.CreatedAt.Add(72*time.Hour), low.SLADeadline())
	})

	t.Run("breached when past deadline with no reply", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityUrgent)
		assert.False(t, ticket.IsSLABreached(ticket.CreatedAt.Add(time.Hour)))
		assert.True(t, ticket.IsSLABreached(ticket.CreatedAt.Add(3*time.Hour)))
	})

	t.Run("first reply stops the clock", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityUrgent)
		ticket.RecordFirstReply(ticket.CreatedAt.Add(time.Minute))
		assert.False(t, ticket.IsSLABreached(ticket.CreatedAt.Add(48*time.Hour)))

		// Only the first reply is recorded
		first := *ticket.FirstReplyAt
		ticket.RecordFirstReply(ticket.CreatedAt.Add(time.Hour))
		assert.Equal(t, first, *ticket.FirstReplyAt)
	})

	t.Run("resolved tickets never breach", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityUrgent)
		require.NoError(t, ticket.TransitionTo(TicketStatusResolved, ticket.CreatedAt.Add(time.Minute)))
		assert.False(t, ticket.IsSLABreached(ticket.CreatedAt.Add(48*time.Hour)))
	})
}

func TestTicketAutoClose(t *testing.T) {
	now := time.Now()
	ticket := newTestTicket(t, PriorityNormal)
	require.NoError(t, ticket.TransitionTo(TicketStatusResolved, now))

	assert.False(t, ticket.ShouldAutoClose(now.Add(6*24*time.Hour)))
	assert.True(t, ticket.ShouldAutoClose(now.Add(8*24*time.Hour)))

	open := newTestTicket(t, PriorityNormal)
	assert.False(t, open.ShouldAutoClose(now.Add(30*24*time.Hour)))
}

func TestMessage(t *testing.T) {
	t.Run("appends to open ticket", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityNormal)
		msg, err := NewMessage(ticket, AuthorCustomer, nil, "It still fails", false)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, msg.TicketID)
	})

	t.Run("rejected on closed ticket", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityNormal)
		ticket.Status = TicketStatusClosed
		_, err := NewMessage(ticket, AuthorStaff, nil, "Following up", false)
		assert.Error(t, err)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityNormal)
		_, err := NewMessage(ticket, AuthorCustomer, nil, "  ", false)
		assert.Error(t, err)
	})

	t.Run("rejects unknown author kind", func(t *testing.T) {
		ticket := newTestTicket(t, PriorityNormal)
		_, err := NewMessage(ticket, "bot", nil, "hello", false)
		assert.Error(t, err)
	})
}
