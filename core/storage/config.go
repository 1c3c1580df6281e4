package storage

// Config holds configuration for the artifact object storage (S3/MinIO).
type Config struct {
	// Enabled toggles artifact export entirely.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Endpoint is the storage endpoint, with or without scheme.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000"`
	// AccessKey is the storage access key.
	AccessKey string `mapstructure:"access_key" default:""`
	// SecretKey is the storage secret key.
	SecretKey string `mapstructure:"secret_key" default:""`
	// Bucket is the bucket receiving sync artifacts.
	Bucket string `mapstructure:"bucket" default:"rollcall"`
	// Region is the storage region.
	Region string `mapstructure:"region" default:""`
	// UseSSL enables TLS towards the endpoint.
	UseSSL bool `mapstructure:"use_ssl" default:"false"`
	// TimeoutSeconds bounds connection setup and response waits.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
