package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// sleeperMock is a testify mock for timeutil.Sleeper.
type sleeperMock struct {
	mock.Mock
}

func (s *sleeperMock) Sleep(d time.Duration) {
	s.Called(d)
}

// newSleeperMock creates a sleeper mock that accepts any Sleep call and
// returns immediately, so tests don't actually wait on rate-limit delays.
func newSleeperMock(t *testing.T) *sleeperMock {
	t.Helper()
	m := new(sleeperMock)
	m.On("Sleep", mock.Anything).Return()
	return m
}
