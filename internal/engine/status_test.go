package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loto-rfid-backend/internal/model"
	"loto-rfid-backend/internal/topics"
)

func TestStatusPublisher_PublishIfChanged(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewStatusPublisher(pub, zap.NewNop())
	ctx := context.Background()
	layout := topics.New("APP/LOTO_RFID")

	send := func(code, status string) bool {
		sent, err := p.PublishIfChanged(ctx, layout.Status(code), code, StatusPayload{ModuleLotoCode: code, Status: status})
		require.NoError(t, err)
		return sent
	}

	assert.True(t, send("A01", StatusOK), "first status is always sent")
	assert.False(t, send("A01", StatusOK))
	assert.True(t, send("A01", StatusAlert))
	assert.False(t, send("A01", StatusAlert))
	assert.True(t, send("A02", StatusAlert), "state is kept per module")
	assert.True(t, send("A01", StatusOK))

	last, ok := p.LastStatus("A01")
	assert.True(t, ok)
	assert.Equal(t, StatusOK, last)
	_, ok = p.LastStatus("A03")
	assert.False(t, ok)

	assert.Len(t, pub.msgs, 4)
}

func TestStatusPublisher_FailedPublishIsRetriedNextTime(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := NewStatusPublisher(pub, zap.NewNop())
	ctx := context.Background()
	status := StatusPayload{ModuleLotoCode: "A01", Status: StatusAlert}

	sent, err := p.PublishIfChanged(ctx, "t", "A01", status)
	assert.Error(t, err)
	assert.False(t, sent)
	_, ok := p.LastStatus("A01")
	assert.False(t, ok)

	pub.err = nil
	sent, err = p.PublishIfChanged(ctx, "t", "A01", status)
	assert.NoError(t, err)
	assert.True(t, sent)
}

func TestStatusPublisher_DeliverSwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := NewStatusPublisher(pub, zap.NewNop())

	assert.NotPanics(t, func() {
		p.Deliver(context.Background(), []Intent{
			{Kind: topics.KindUsers, ModuleCode: "A01", Topic: "u", Payload: UsersPayload{ModuleLotoCode: "A01"}},
			{Kind: topics.KindStatus, ModuleCode: "A01", Topic: "s", Payload: StatusPayload{ModuleLotoCode: "A01", Status: StatusOK}},
		})
	})

	pub.err = nil
	p.Deliver(context.Background(), []Intent{
		{Kind: topics.KindStatus, ModuleCode: "A01", Topic: "s", Payload: StatusPayload{ModuleLotoCode: "A01", Status: StatusOK}},
	})
	assert.Equal(t, []string{"s"}, pub.topics())
}

func TestStatusPayloads(t *testing.T) {
	errStatus := ErrorStatus("GHOST")
	assert.Equal(t, StatusError, errStatus.Status)
	assert.Equal(t, unmappedBayMessage, errStatus.Message)
	assert.Empty(t, errStatus.Alerts)

	ok := ViolationStatus("A01", nil)
	assert.Equal(t, StatusOK, ok.Status)
	assert.Equal(t, okMessage, ok.Message)

	alert := ViolationStatus("A01", []model.Principal{{ID: 1, Name: "Alice", Lastname: "Smith"}, {ID: 2, Name: "Bob", Lastname: "Jones"}})
	assert.Equal(t, StatusAlert, alert.Status)
	assert.Empty(t, alert.Message)
	assert.Equal(t, []StatusAlertItem{noLockoutAlert("Alice", "Smith"), noLockoutAlert("Bob", "Jones")}, alert.Alerts)
}
