package repository

import (
	"context"
	"database/sql/driver"
	"net"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithRetrySucceedsAfterFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := &flakyPinger{failures: 2}

	err := pingWithRetry(context.Background(), p, 5, time.Millisecond, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestPingWithRetryGivesUp(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := &flakyPinger{failures: 100}

	err := pingWithRetry(context.Background(), p, 3, time.Millisecond, logger)
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestPingWithRetryStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := &flakyPinger{failures: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pingWithRetry(ctx, p, 10, time.Hour, logger)
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil, "op"))
	assert.Equal(t, ErrNotFound, classify(ErrNotFound, "op"))

	unavailable := []error{
		context.DeadlineExceeded,
		driver.ErrBadConn,
		mysql.ErrInvalidConn,
		&mysql.MySQLError{Number: 1040, Message: "Too many connections"},
		&pq.Error{Code: "08006", Message: "connection failure"},
		&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"},
		&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	for _, err := range unavailable {
		got := classify(err, "op")
		assert.True(t, errors.Is(got, ErrUnavailable), "%v should be unavailable", err)
		assert.Contains(t, got.Error(), "op")
	}

	got := classify(&mysql.MySQLError{Number: 1064, Message: "syntax error"}, "op")
	assert.False(t, errors.Is(got, ErrUnavailable))

	got = classify(context.Canceled, "op")
	assert.False(t, errors.Is(got, ErrUnavailable))
	assert.True(t, errors.Is(got, context.Canceled))
}
