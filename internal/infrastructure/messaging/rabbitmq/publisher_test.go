package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/natours-auth/internal/domain"
)

// fakeChannel answers each publish the way a broker would: optionally a
// Return, then a Confirmation.
type fakeChannel struct {
	confirms chan amqp.Confirmation
	returns  chan amqp.Return

	ack        bool
	unroutable bool
	silent     bool
	publishErr error

	published []amqp.Publishing
	keys      []string
	closed    bool
	tag       uint64
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	f.keys = append(f.keys, key)
	if f.silent {
		return nil
	}
	if f.unroutable {
		f.returns <- amqp.Return{ReplyCode: 312, ReplyText: "NO_ROUTE"}
	}
	f.tag++
	f.confirms <- amqp.Confirmation{DeliveryTag: f.tag, Ack: f.ack}
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func newTestPublisher(f *fakeChannel) *Publisher {
	f.confirms = make(chan amqp.Confirmation, 1)
	f.returns = make(chan amqp.Return, 1)
	return &Publisher{
		exchange:  DefaultExchange,
		lg:        zerolog.Nop(),
		ch:        f,
		confirmCh: f.confirms,
		returnCh:  f.returns,
	}
}

var note = domain.Notification{To: "ann@x.com", Subject: "Reset", Body: "link"}

func TestSend_AckIsDelivered(t *testing.T) {
	f := &fakeChannel{ack: true}
	p := newTestPublisher(f)

	require.NoError(t, p.Send(context.Background(), note))

	require.Len(t, f.published, 1)
	assert.Equal(t, RoutingKeyNotification, f.keys[0])
	assert.Equal(t, "application/json", f.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, f.published[0].DeliveryMode)

	var evt NotificationEvent
	require.NoError(t, json.Unmarshal(f.published[0].Body, &evt))
	assert.Equal(t, "ann@x.com", evt.To)
	assert.Equal(t, "Reset", evt.Subject)
	assert.Equal(t, "link", evt.Body)
	assert.False(t, evt.RequestedAt.IsZero())
}

func TestSend_NackFails(t *testing.T) {
	p := newTestPublisher(&fakeChannel{ack: false})

	err := p.Send(context.Background(), note)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")
}

func TestSend_UnroutableFails(t *testing.T) {
	p := newTestPublisher(&fakeChannel{ack: true, unroutable: true})

	err := p.Send(context.Background(), note)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unroutable")
}

func TestSend_PublishErrorResetsChannel(t *testing.T) {
	f := &fakeChannel{publishErr: errors.New("channel closed")}
	p := newTestPublisher(f)

	err := p.Send(context.Background(), note)

	require.Error(t, err)
	assert.True(t, f.closed)
	assert.Nil(t, p.ch)
}

func TestSend_NoConfirmHonoursDeadline(t *testing.T) {
	p := newTestPublisher(&fakeChannel{silent: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Send(ctx, note)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_DrainsStaleConfirms(t *testing.T) {
	f := &fakeChannel{ack: true}
	p := newTestPublisher(f)
	f.confirms <- amqp.Confirmation{DeliveryTag: 99, Ack: false}

	require.NoError(t, p.Send(context.Background(), note))
}
