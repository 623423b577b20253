package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind identifies the lifecycle event a notification reports
type NotificationKind string

const (
	NotificationLoanApproved         NotificationKind = "loan_approved"
	NotificationLoanRejected         NotificationKind = "loan_rejected"
	NotificationPaymentRecorded      NotificationKind = "payment_recorded"
	NotificationLoanOverdue          NotificationKind = "loan_overdue"
	NotificationLoanDefaulted        NotificationKind = "loan_defaulted"
	NotificationContributionRecorded NotificationKind = "contribution_recorded"
)

// Notification is a stored record of a lifecycle event delivered to members.
// Delivery is best effort; the ledger operation that produced the event never
// depends on it.
type Notification struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Kind         NotificationKind     `json:"kind" bson:"kind"`
	ChamaID      primitive.ObjectID   `json:"chamaId" bson:"chamaId"`
	SubjectID    primitive.ObjectID   `json:"subjectId" bson:"subjectId"`
	RecipientIDs []primitive.ObjectID `json:"recipientIds" bson:"recipientIds"`
	Message      string               `json:"message" bson:"message"`
	CreatedAt    time.Time            `json:"createdAt" bson:"createdAt"`
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit int64) ([]*Notification, error)
}
