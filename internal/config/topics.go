package config

const (
	// TopicConversionResult is the NSQ topic for finished conversions (success/failure).
	TopicConversionResult = "conversion.result"
)
