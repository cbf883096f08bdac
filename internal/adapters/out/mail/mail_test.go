package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	from, to, subject, body string
}

type fakeClient struct{ got []captured }

func (f *fakeClient) Send(_ context.Context, from, to, subject, body string) error {
	f.got = append(f.got, captured{from, to, subject, body})
	return nil
}

func TestVerificationMailerSendsCode(t *testing.T) {
	c := &fakeClient{}
	m := NewVerificationMailer(c, "no-reply@booknest.test", "")
	require.NoError(t, m.SendVerificationCode(context.Background(), " reader@gmail.com ", "123456"))

	require.Len(t, c.got, 1)
	assert.Equal(t, "reader@gmail.com", c.got[0].to)
	assert.Equal(t, "[BookNest] Your verification code", c.got[0].subject)
	assert.Contains(t, c.got[0].body, "123456")
}

func TestSendGridWireNeedsKeyAndSender(t *testing.T) {
	assert.Nil(t, NewVerificationMailerWithSendGrid("", "x@y.z", "", nil))
	assert.Nil(t, NewVerificationMailerWithSendGrid("key", "", "", nil))
	assert.NotNil(t, NewVerificationMailerWithSendGrid("key", "x@y.z", "", nil))
}

func TestSendGridClientValidatesArguments(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewSendGridClient("", "", nil).Send(ctx, "a@b.c", "d@e.f", "s", "b"))
	assert.Error(t, NewSendGridClient("k", "", nil).Send(ctx, "", "d@e.f", "s", "b"))
	assert.Error(t, NewSendGridClient("k", "", nil).Send(ctx, "a@b.c", "", "s", "b"))
}
