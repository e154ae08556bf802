package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageView(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	m := &Message{
		ID:               "m1",
		ChatWaID:         "5551",
		Sender:           "5551",
		Content:          StringPtr("hi"),
		Timestamp:        ts,
		Status:           StatusReceived,
		ReferenceContent: StringPtr("m0"),
	}

	v := m.View()
	assert.Equal(t, "5551", v.ChatID)
	assert.Equal(t, "5551", v.SenderID)
	assert.Equal(t, int64(1700000000123), v.Timestamp)
	assert.Equal(t, "m0", *v.ReferencedContent)
	assert.NotNil(t, v.Reactions)
	assert.Empty(t, v.Reactions)
}

func TestHasParticipant(t *testing.T) {
	c := &Chat{Participants: []Participant{{WaID: "a"}, {WaID: "b"}}}
	assert.True(t, c.HasParticipant("b"))
	assert.False(t, c.HasParticipant("c"))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", *StringPtr("x"))
}
