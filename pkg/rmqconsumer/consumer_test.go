package rmqconsumer

import (
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"attachment-api/config"
)

func Test_delivery_Table(t *testing.T) {
	type tc struct {
		name       string
		routingKey string
		body       string
		wantErr    bool
		wantMsg    string
		wantLevel  zapcore.Level
		wantFields map[string]any
	}
	cases := []tc{
		{
			name:       "completed event",
			routingKey: "attachment.completed",
			body:       `{"event_id":"e-1","event_action":"attachment.completed","attachment_id":"a-1","time_stamp":"2026-01-01T00:00:00Z"}`,
			wantMsg:    "attachment completed",
			wantLevel:  zapcore.InfoLevel,
			wantFields: map[string]any{"event_id": "e-1", "attachment_id": "a-1"},
		},
		{
			name:       "unknown routing key is skipped",
			routingKey: "POST",
			body:       `{}`,
			wantMsg:    "unexpected routing key",
			wantLevel:  zapcore.WarnLevel,
			wantFields: map[string]any{"routing_key": "POST"},
		},
		{
			name:       "broken body",
			routingKey: "attachment.completed",
			body:       `{not json`,
			wantErr:    true,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			c := New(config.MQ{}, zap.New(core), nil)

			err := c.delivery(amqp091.Delivery{RoutingKey: tt.routingKey, Body: []byte(tt.body)})
			if tt.wantErr {
				require.Error(t, err)
				assert.Zero(t, logs.Len())
				return
			}
			require.NoError(t, err)

			entries := logs.FilterMessage(tt.wantMsg).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
			fields := entries[0].ContextMap()
			for k, v := range tt.wantFields {
				assert.Equal(t, v, fields[k], k)
			}
		})
	}
}
