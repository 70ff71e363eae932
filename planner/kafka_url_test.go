package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKafkaURLWithExplicitPort(t *testing.T) {
	broker, topic, err := ParseKafkaURL("kafka://broker1:9093/clicks")
	require.NoError(t, err)
	require.Equal(t, "broker1:9093", broker)
	require.Equal(t, "clicks", topic)
}

func TestParseKafkaURLDefaultsPort(t *testing.T) {
	broker, topic, err := ParseKafkaURL("kafka://broker1/clicks")
	require.NoError(t, err)
	require.Equal(t, "broker1:9092", broker)
	require.Equal(t, "clicks", topic)
}

func TestParseKafkaURLRejectsWrongScheme(t *testing.T) {
	_, _, err := ParseKafkaURL("http://broker1/clicks")
	require.Error(t, err)
}

func TestParseKafkaURLRejectsMissingTopic(t *testing.T) {
	_, _, err := ParseKafkaURL("kafka://broker1/")
	require.Error(t, err)
}

func TestParseKafkaURLRejectsNestedPath(t *testing.T) {
	_, _, err := ParseKafkaURL("kafka://broker1/a/b")
	require.Error(t, err)
}

func TestParseKafkaURLRejectsMissingHost(t *testing.T) {
	_, _, err := ParseKafkaURL("kafka:///clicks")
	require.Error(t, err)
}
