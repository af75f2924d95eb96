package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orderdesk/orderdesk/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
		want bool
	}{
		{domain.OrderStatusDraft, domain.OrderStatusPending, true},
		{domain.OrderStatusDraft, domain.OrderStatusCancelled, true},
		{domain.OrderStatusDraft, domain.OrderStatusProcessing, false},
		{domain.OrderStatusDraft, domain.OrderStatusDraft, false},
		{domain.OrderStatusPending, domain.OrderStatusProcessing, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusProcessing, domain.OrderStatusShipped, true},
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled, true},
		{domain.OrderStatusProcessing, domain.OrderStatusDelivered, false},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusDraft, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, domain.CanTransition(tc.from, tc.to))
		})
	}
}

func TestAllowedTransitions_TerminalStatesHaveNone(t *testing.T) {
	assert.Empty(t, domain.AllowedTransitions(domain.OrderStatusDelivered))
	assert.Empty(t, domain.AllowedTransitions(domain.OrderStatusCancelled))
	assert.ElementsMatch(t,
		[]domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusCancelled},
		domain.AllowedTransitions(domain.OrderStatusDraft))
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range domain.OrderStatusChoices {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, domain.OrderStatus("archived").Valid())
	assert.False(t, domain.OrderStatus("").Valid())
}

func TestOrderGuards(t *testing.T) {
	cases := []struct {
		status     domain.OrderStatus
		modifiable bool
		cancelable bool
		completed  bool
	}{
		{domain.OrderStatusDraft, true, true, false},
		{domain.OrderStatusPending, true, true, false},
		{domain.OrderStatusProcessing, false, true, false},
		{domain.OrderStatusShipped, false, false, false},
		{domain.OrderStatusDelivered, false, false, true},
		{domain.OrderStatusCancelled, false, false, true},
	}
	for _, tc := range cases {
		o := domain.Order{Status: tc.status}
		assert.Equal(t, tc.modifiable, o.CanBeModified(), "%s modifiable", tc.status)
		assert.Equal(t, tc.cancelable, o.CanBeCancelled(), "%s cancelable", tc.status)
		assert.Equal(t, tc.completed, o.IsCompleted(), "%s completed", tc.status)
	}
}
