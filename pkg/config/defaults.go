package config

// Event stream providers.
const (
	EventStreamNone  = "none"
	EventStreamKafka = "kafka"
)

const (
	defaultAuthHeader = "x-pype-token"
	defaultTimeout    = "30s"
	defaultWorkers    = 3
	defaultQueueSize  = 256
	defaultAPIListen  = ":8090"

	defaultEventStreamProvider = EventStreamNone
	defaultEventStreamTopic    = "voxtap.calls"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Delivery: DeliveryConfig{
			AuthHeader: defaultAuthHeader,
			Timeout:    defaultTimeout,
			Workers:    defaultWorkers,
			QueueSize:  defaultQueueSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
