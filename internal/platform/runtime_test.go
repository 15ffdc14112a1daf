package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
)

func TestRuntimeCloseRunsInReverseAndJoinsErrors(t *testing.T) {
	var order []string
	rt := &Runtime{closers: []func() error{
		func() error { order = append(order, "db"); return errors.New("db close") },
		func() error { order = append(order, "redis"); return nil },
		func() error { order = append(order, "pubsub"); return errors.New("pubsub close") },
	}}

	err := rt.Close()
	assert.Equal(t, []string{"pubsub", "redis", "db"}, order)
	assert.ErrorContains(t, err, "db close")
	assert.ErrorContains(t, err, "pubsub close")
	assert.NoError(t, rt.Close(), "second close is a no-op")
}

func TestRuntimeFields(t *testing.T) {
	rt := &Runtime{Config: &config.Config{
		App:     config.AppConfig{Env: "dev"},
		Service: config.ServiceConfig{Kind: "worker"},
	}}
	assert.Equal(t, map[string]any{
		"env":         "dev",
		"serviceKind": "worker",
		"instance":    "abc",
	}, rt.Fields(map[string]any{"instance": "abc"}))
}
