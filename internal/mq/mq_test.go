package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPublisher_BadURL(t *testing.T) {
	_, err := NewPublisher("http://localhost:5672/", "notifications")
	assert.ErrorContains(t, err, "dial rabbitmq")
}

func TestNewConsumer_BadURL(t *testing.T) {
	_, err := NewConsumer("http://localhost:5672/", "notifications", "q", []string{"notification.#"}, 8)
	assert.ErrorContains(t, err, "dial rabbitmq")
}

func TestCloseAll_Nil(t *testing.T) {
	assert.NoError(t, closeAll(nil, nil))
}
