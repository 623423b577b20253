package testutil

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/websocket"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	mu       sync.Mutex
	Loans    map[primitive.ObjectID]*domain.Loan
	SaveErr  error
	CreateFn func(loan *domain.Loan) (*domain.Loan, error)
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans: make(map[primitive.ObjectID]*domain.Loan),
	}
}

func (m *MockLoanRepository) clone(loan *domain.Loan) *domain.Loan {
	c := *loan
	c.Schedule = append([]domain.Installment(nil), loan.Schedule...)
	c.Payments = append([]domain.PaymentRecord(nil), loan.Payments...)
	c.GuarantorIDs = append([]primitive.ObjectID(nil), loan.GuarantorIDs...)
	return &c
}

// Create assigns an id and stores the loan
func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(loan)
	}
	if loan.ID.IsZero() {
		loan.ID = primitive.NewObjectID()
	}
	loan.Version = 1
	loan.CreatedAt = time.Now().UTC()
	loan.UpdatedAt = loan.CreatedAt
	m.Loans[loan.ID] = m.clone(loan)
	return loan, nil
}

// GetByID retrieves a loan by id
func (m *MockLoanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan, ok := m.Loans[id]; ok {
		return m.clone(loan), nil
	}
	return nil, domain.ErrLoanNotFound
}

// Save replaces the stored loan when the version matches, mirroring the
// optimistic concurrency check of the real repository
func (m *MockLoanRepository) Save(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	stored, ok := m.Loans[loan.ID]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	if stored.Version != loan.Version {
		return nil, domain.ErrVersionConflict
	}
	loan.Version++
	loan.UpdatedAt = time.Now().UTC()
	m.Loans[loan.ID] = m.clone(loan)
	return loan, nil
}

// FindActive returns the borrower's pending or approved loan in the chama
func (m *MockLoanRepository) FindActive(ctx context.Context, borrowerID, chamaID primitive.ObjectID) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, loan := range m.Loans {
		if loan.BorrowerID == borrowerID && loan.ChamaID == chamaID && loan.IsActive() {
			return m.clone(loan), nil
		}
	}
	return nil, nil
}

// ListByChama returns all loans of a chama
func (m *MockLoanRepository) ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*domain.Loan
	for _, loan := range m.Loans {
		if loan.ChamaID == chamaID {
			loans = append(loans, m.clone(loan))
		}
	}
	return loans, nil
}

// ListByBorrower returns all loans of a borrower
func (m *MockLoanRepository) ListByBorrower(ctx context.Context, borrowerID primitive.ObjectID) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*domain.Loan
	for _, loan := range m.Loans {
		if loan.BorrowerID == borrowerID {
			loans = append(loans, m.clone(loan))
		}
	}
	return loans, nil
}

// ListOverdueCandidates returns approved or overdue loans with an unpaid
// installment past its due date
func (m *MockLoanRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*domain.Loan
	for _, loan := range m.Loans {
		if loan.Status != domain.LoanStatusApproved && loan.Status != domain.LoanStatusOverdue {
			continue
		}
		for _, inst := range loan.Schedule {
			if !inst.IsSettled() && inst.DueDate.Before(now) {
				loans = append(loans, m.clone(loan))
				break
			}
		}
	}
	return loans, nil
}

// AddLoan stores a loan directly (helper for tests)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.ID.IsZero() {
		loan.ID = primitive.NewObjectID()
	}
	if loan.Version == 0 {
		loan.Version = 1
	}
	m.Loans[loan.ID] = m.clone(loan)
}

// MockChamaRepository is a mock implementation of domain.ChamaRepository
type MockChamaRepository struct {
	Chamas map[primitive.ObjectID]*domain.Chama
}

// NewMockChamaRepository creates a new MockChamaRepository
func NewMockChamaRepository() *MockChamaRepository {
	return &MockChamaRepository{
		Chamas: make(map[primitive.ObjectID]*domain.Chama),
	}
}

// GetByID retrieves a chama by id
func (m *MockChamaRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Chama, error) {
	if chama, ok := m.Chamas[id]; ok {
		return chama, nil
	}
	return nil, domain.ErrChamaNotFound
}

// AddChama stores a chama (helper for tests)
func (m *MockChamaRepository) AddChama(chama *domain.Chama) {
	if chama.ID.IsZero() {
		chama.ID = primitive.NewObjectID()
	}
	m.Chamas[chama.ID] = chama
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	Users map[primitive.ObjectID]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[primitive.ObjectID]*domain.User),
	}
}

// GetByID retrieves a user by id
func (m *MockUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// GetByIDs retrieves the users whose ids are known, skipping missing ones
func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*domain.User, error) {
	var users []*domain.User
	for _, id := range ids {
		if user, ok := m.Users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// AddUser stores a user (helper for tests)
func (m *MockUserRepository) AddUser(user *domain.User) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.Users[user.ID] = user
}

// MockContributionRepository is a mock implementation of domain.ContributionRepository
type MockContributionRepository struct {
	mu            sync.Mutex
	Contributions []*domain.Contribution
}

// NewMockContributionRepository creates a new MockContributionRepository
func NewMockContributionRepository() *MockContributionRepository {
	return &MockContributionRepository{}
}

// Create assigns an id and stores the contribution
func (m *MockContributionRepository) Create(ctx context.Context, contribution *domain.Contribution) (*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if contribution.ID.IsZero() {
		contribution.ID = primitive.NewObjectID()
	}
	contribution.CreatedAt = time.Now().UTC()
	m.Contributions = append(m.Contributions, contribution)
	return contribution, nil
}

// ListByChama returns a chama's contributions
func (m *MockContributionRepository) ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Contribution
	for _, c := range m.Contributions {
		if c.ChamaID == chamaID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListByMember returns a member's contributions within a chama
func (m *MockContributionRepository) ListByMember(ctx context.Context, chamaID, memberID primitive.ObjectID) ([]*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Contribution
	for _, c := range m.Contributions {
		if c.ChamaID == chamaID && c.MemberID == memberID {
			out = append(out, c)
		}
	}
	return out, nil
}

// TotalByMember sums a member's contributions within a chama
func (m *MockContributionRepository) TotalByMember(ctx context.Context, chamaID, memberID primitive.ObjectID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, c := range m.Contributions {
		if c.ChamaID == chamaID && c.MemberID == memberID {
			total = total.Add(c.Amount)
		}
	}
	return total, nil
}

// MockNotificationRepository is a mock implementation of domain.NotificationRepository
type MockNotificationRepository struct {
	mu            sync.Mutex
	Notifications []*domain.Notification
	CreateErr     error
}

// NewMockNotificationRepository creates a new MockNotificationRepository
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

// Create assigns an id and stores the notification
func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	notification.CreatedAt = time.Now().UTC()
	m.Notifications = append(m.Notifications, notification)
	return notification, nil
}

// ListByRecipient returns stored notifications addressed to the recipient
func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit int64) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Notification
	for _, n := range m.Notifications {
		for _, r := range n.RecipientIDs {
			if r == recipientID {
				out = append(out, n)
				break
			}
		}
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// All returns every stored notification (helper for tests)
func (m *MockNotificationRepository) All() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Notification(nil), m.Notifications...)
}

// MockTxRunner is a mock implementation of domain.TxRunner that simply invokes
// the callback. Mongo transactions are exercised against a real replica set.
type MockTxRunner struct {
	Calls int
	Err   error
}

// NewMockTxRunner creates a new MockTxRunner
func NewMockTxRunner() *MockTxRunner {
	return &MockTxRunner{}
}

// WithTransaction runs fn in-process
func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx)
}

// PublishedEvent captures one EventPublisher.Publish call
type PublishedEvent struct {
	RecipientIDs []string
	Event        websocket.Event
}

// MockEventPublisher records published events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(recipientIDs []string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{RecipientIDs: recipientIDs, Event: event})
}

// Published returns a copy of the captured events
func (m *MockEventPublisher) Published() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.Events...)
}

// SentEmail captures one mail.Sender.Send call
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender records sent emails for assertions
type MockEmailSender struct {
	mu     sync.Mutex
	Emails []SentEmail
	Err    error
}

// NewMockEmailSender creates a new MockEmailSender
func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

// Send records the email
func (m *MockEmailSender) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Emails = append(m.Emails, SentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// Sent returns a copy of the captured emails
func (m *MockEmailSender) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.Emails...)
}

// MockReceiptRepository is an in-memory implementation of storage.ReceiptRepository
type MockReceiptRepository struct {
	mu        sync.Mutex
	Objects   map[string][]byte
	UploadErr error
}

// NewMockReceiptRepository creates a new MockReceiptRepository
func NewMockReceiptRepository() *MockReceiptRepository {
	return &MockReceiptRepository{
		Objects: make(map[string][]byte),
	}
}

// Upload stores the object bytes in memory
func (m *MockReceiptRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.Objects[objectPath] = buf
	return objectPath, nil
}

// Delete removes a stored object
func (m *MockReceiptRepository) Delete(ctx context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, objectPath)
	return nil
}

// GeneratePresignedURL returns a deterministic fake URL
func (m *MockReceiptRepository) GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	return "https://receipts.test/" + objectPath, nil
}
