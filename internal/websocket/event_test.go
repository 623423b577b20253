package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name       string
		event      Event
		wantType   string
		wantEntity string
	}{
		{"loan approved", NewLoanApprovedEvent(nil), "loan.approved", EntityLoan},
		{"loan rejected", NewLoanRejectedEvent(nil), "loan.rejected", EntityLoan},
		{"payment recorded", NewLoanPaymentRecordedEvent(nil), "loan.payment_recorded", EntityLoan},
		{"loan overdue", NewLoanOverdueEvent(nil), "loan.overdue", EntityLoan},
		{"loan defaulted", NewLoanDefaultedEvent(nil), "loan.defaulted", EntityLoan},
		{"contribution recorded", NewContributionRecordedEvent(nil), "contribution.recorded", EntityContribution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.event.Type)
			assert.Equal(t, tt.wantEntity, tt.event.Entity)
			assert.WithinDuration(t, time.Now().UTC(), tt.event.Timestamp, time.Second)
		})
	}
}

func TestEventMarshal(t *testing.T) {
	event := NewLoanPaymentRecordedEvent(map[string]string{"loan_id": "abc", "amount": "1500.00"})

	data, err := event.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "loan.payment_recorded", decoded["type"])
	assert.Equal(t, "loan", decoded["entity"])

	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", payload["loan_id"])
}
