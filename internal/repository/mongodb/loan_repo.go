package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
)

// LoanRepository implements domain.LoanRepository on MongoDB
type LoanRepository struct {
	collection *mongo.Collection
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(client *Client) *LoanRepository {
	return &LoanRepository{collection: client.database.Collection(loansCollection)}
}

type installmentDoc struct {
	Amount      string     `bson:"amount"`
	DueDate     time.Time  `bson:"dueDate"`
	Status      string     `bson:"status"`
	AmountPaid  string     `bson:"amountPaid"`
	PaymentDate *time.Time `bson:"paymentDate,omitempty"`
}

type paymentDoc struct {
	Amount     string             `bson:"amount"`
	Date       time.Time          `bson:"date"`
	Method     string             `bson:"method"`
	Reference  string             `bson:"reference"`
	RecordedBy primitive.ObjectID `bson:"recordedBy"`
	Notes      string             `bson:"notes,omitempty"`
	ReceiptKey *string            `bson:"receiptKey,omitempty"`
}

type loanDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	ChamaID        primitive.ObjectID   `bson:"chamaId"`
	BorrowerID     primitive.ObjectID   `bson:"borrowerId"`
	GuarantorIDs   []primitive.ObjectID `bson:"guarantorIds,omitempty"`
	Principal      string               `bson:"principal"`
	Purpose        string               `bson:"purpose"`
	InterestRate   string               `bson:"interestRate"`
	InterestAmount string               `bson:"interestAmount"`
	TotalRepayment string               `bson:"totalRepaymentAmount"`
	Status         string               `bson:"status"`
	ApprovedBy     *primitive.ObjectID  `bson:"approvedBy,omitempty"`
	ApprovalDate   *time.Time           `bson:"approvalDate,omitempty"`
	Schedule       []installmentDoc     `bson:"repaymentSchedule"`
	Payments       []paymentDoc         `bson:"paymentHistory"`
	ClosedAt       *time.Time           `bson:"closedAt,omitempty"`
	DefaultDate    *time.Time           `bson:"defaultDate,omitempty"`
	OverdueSince   *time.Time           `bson:"overdueSince,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
	Version        int64                `bson:"version"`
}

// Create inserts a new loan with version 1
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if loan.ID.IsZero() {
		loan.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	loan.Version = 1

	if _, err := r.collection.InsertOne(ctx, loanToDoc(loan)); err != nil {
		return nil, err
	}
	return loan, nil
}

// GetByID retrieves a loan by its id
func (r *LoanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Loan, error) {
	var doc loanDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return docToLoan(doc), nil
}

// Save replaces the stored document if and only if its version still matches
// the loaded one. A lost race surfaces as domain.ErrVersionConflict so the
// caller can retry the whole operation.
func (r *LoanRepository) Save(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	loadedVersion := loan.Version
	loan.UpdatedAt = time.Now().UTC()
	loan.Version = loadedVersion + 1

	result, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": loan.ID, "version": loadedVersion},
		loanToDoc(loan),
	)
	if err != nil {
		loan.Version = loadedVersion
		return nil, err
	}
	if result.MatchedCount == 0 {
		loan.Version = loadedVersion
		if err := r.collection.FindOne(ctx, bson.M{"_id": loan.ID}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, domain.ErrVersionConflict
	}
	return loan, nil
}

// FindActive returns the borrower's pending or approved loan in the chama,
// or nil when there is none
func (r *LoanRepository) FindActive(ctx context.Context, borrowerID, chamaID primitive.ObjectID) (*domain.Loan, error) {
	filter := bson.M{
		"borrowerId": borrowerID,
		"chamaId":    chamaID,
		"status": bson.M{"$in": []string{
			string(domain.LoanStatusPending),
			string(domain.LoanStatusApproved),
		}},
	}

	var doc loanDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return docToLoan(doc), nil
}

// ListByChama retrieves all loans for a chama, newest first
func (r *LoanRepository) ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]*domain.Loan, error) {
	return r.list(ctx, bson.M{"chamaId": chamaID})
}

// ListByBorrower retrieves all loans a member has requested
func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID primitive.ObjectID) ([]*domain.Loan, error) {
	return r.list(ctx, bson.M{"borrowerId": borrowerID})
}

// ListOverdueCandidates returns approved or overdue loans with at least one
// unpaid installment whose due date has passed
func (r *LoanRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Loan, error) {
	filter := bson.M{
		"status": bson.M{"$in": []string{
			string(domain.LoanStatusApproved),
			string(domain.LoanStatusOverdue),
		}},
		"repaymentSchedule": bson.M{"$elemMatch": bson.M{
			"status":  bson.M{"$ne": string(domain.InstallmentStatusPaid)},
			"dueDate": bson.M{"$lt": now},
		}},
	}
	return r.list(ctx, filter)
}

func (r *LoanRepository) list(ctx context.Context, filter bson.M) ([]*domain.Loan, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []loanDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	loans := make([]*domain.Loan, len(docs))
	for i, doc := range docs {
		loans[i] = docToLoan(doc)
	}
	return loans, nil
}

// Converters

func loanToDoc(l *domain.Loan) loanDoc {
	doc := loanDoc{
		ID:             l.ID,
		ChamaID:        l.ChamaID,
		BorrowerID:     l.BorrowerID,
		GuarantorIDs:   l.GuarantorIDs,
		Principal:      decimalToString(l.Principal),
		Purpose:        l.Purpose,
		InterestRate:   decimalToString(l.InterestRate),
		InterestAmount: decimalToString(l.InterestAmount),
		TotalRepayment: decimalToString(l.TotalRepayment),
		Status:         string(l.Status),
		ApprovedBy:     l.ApprovedBy,
		ApprovalDate:   l.ApprovalDate,
		ClosedAt:       l.ClosedAt,
		DefaultDate:    l.DefaultDate,
		OverdueSince:   l.OverdueSince,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		Version:        l.Version,
	}

	doc.Schedule = make([]installmentDoc, len(l.Schedule))
	for i, inst := range l.Schedule {
		doc.Schedule[i] = installmentDoc{
			Amount:      decimalToString(inst.Amount),
			DueDate:     inst.DueDate,
			Status:      string(inst.Status),
			AmountPaid:  decimalToString(inst.AmountPaid),
			PaymentDate: inst.PaymentDate,
		}
	}

	doc.Payments = make([]paymentDoc, len(l.Payments))
	for i, p := range l.Payments {
		doc.Payments[i] = paymentDoc{
			Amount:     decimalToString(p.Amount),
			Date:       p.Date,
			Method:     p.Method,
			Reference:  p.Reference,
			RecordedBy: p.RecordedBy,
			Notes:      p.Notes,
			ReceiptKey: p.ReceiptKey,
		}
	}

	return doc
}

func docToLoan(doc loanDoc) *domain.Loan {
	loan := &domain.Loan{
		ID:             doc.ID,
		ChamaID:        doc.ChamaID,
		BorrowerID:     doc.BorrowerID,
		GuarantorIDs:   doc.GuarantorIDs,
		Principal:      stringToDecimal(doc.Principal),
		Purpose:        doc.Purpose,
		InterestRate:   stringToDecimal(doc.InterestRate),
		InterestAmount: stringToDecimal(doc.InterestAmount),
		TotalRepayment: stringToDecimal(doc.TotalRepayment),
		Status:         domain.LoanStatus(doc.Status),
		ApprovedBy:     doc.ApprovedBy,
		ApprovalDate:   doc.ApprovalDate,
		ClosedAt:       doc.ClosedAt,
		DefaultDate:    doc.DefaultDate,
		OverdueSince:   doc.OverdueSince,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		Version:        doc.Version,
	}

	loan.Schedule = make([]domain.Installment, len(doc.Schedule))
	for i, inst := range doc.Schedule {
		loan.Schedule[i] = domain.Installment{
			Amount:      stringToDecimal(inst.Amount),
			DueDate:     inst.DueDate,
			Status:      domain.InstallmentStatus(inst.Status),
			AmountPaid:  stringToDecimal(inst.AmountPaid),
			PaymentDate: inst.PaymentDate,
		}
	}

	loan.Payments = make([]domain.PaymentRecord, len(doc.Payments))
	for i, p := range doc.Payments {
		loan.Payments[i] = domain.PaymentRecord{
			Amount:     stringToDecimal(p.Amount),
			Date:       p.Date,
			Method:     p.Method,
			Reference:  p.Reference,
			RecordedBy: p.RecordedBy,
			Notes:      p.Notes,
			ReceiptKey: p.ReceiptKey,
		}
	}

	return loan
}
