package services

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) LogEntryCreated(accountID, entryID int64, customerID *int64, amount decimal.Decimal) {
	m.Called(accountID, entryID, customerID, amount.StringFixed(2))
}

func (m *MockAuditor) LogEntrySettled(accountID, entryID int64, amount decimal.Decimal) {
	m.Called(accountID, entryID, amount.StringFixed(2))
}

func (m *MockAuditor) LogLimitRejected(accountID int64, customerID *int64, amount, pending, limit decimal.Decimal) {
	m.Called(accountID, customerID, amount.StringFixed(2), pending.StringFixed(2), limit.StringFixed(2))
}

func (m *MockAuditor) LogCustomerDeleted(accountID, customerID int64, entriesRemoved int64) {
	m.Called(accountID, customerID, entriesRemoved)
}
