package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		name    string
		project string
		topic   string
		want    string
	}{
		{"bare id", "tourlink-dev", "tl-booking-events", "projects/tourlink-dev/topics/tl-booking-events"},
		{"trims", "tourlink-dev", "  tl-booking-events ", "projects/tourlink-dev/topics/tl-booking-events"},
		{"full name passes through", "other", "projects/p1/topics/t1", "projects/p1/topics/t1"},
		{"empty topic", "tourlink-dev", "", ""},
		{"missing project", "", "t1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TopicResourceName(tc.project, tc.topic))
		})
	}
}

func TestSubscriptionResourceName(t *testing.T) {
	assert.Equal(t, "projects/tourlink-dev/subscriptions/downline", SubscriptionResourceName("tourlink-dev", "downline"))
	assert.Equal(t, "projects/p1/subscriptions/s1", SubscriptionResourceName("other", "projects/p1/subscriptions/s1"))
	assert.Empty(t, SubscriptionResourceName("", "downline"))
}

func TestTopicNamesDeduplicates(t *testing.T) {
	names := TopicNames(config.PubSubConfig{
		BookingsTopic:    "events",
		CommissionsTopic: " events ",
		HierarchyTopic:   "hierarchy",
	})
	assert.Equal(t, []string{"events", "hierarchy"}, names)

	assert.Empty(t, TopicNames(config.PubSubConfig{}))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t1"))
	assert.Nil(t, c.Subscription("s1"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
