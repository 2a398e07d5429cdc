package envvar

const (
	// StyldEnv is the environment variable used to determine the environment
	StyldEnv = "STYLD_ENV"

	// StyldConfig is the environment variable used to locate the config file
	StyldConfig = "STYLD_CONFIG"

	// StyldSchema is the environment variable used to locate the config schema file
	StyldSchema = "STYLD_SCHEMA"

	// StyldServerHTTPHost is the environment variable used to determine the HTTP host
	StyldServerHTTPHost = "STYLD_SERVER_HTTP_HOST"

	// StyldServerHTTPPort is the environment variable used to determine the HTTP port
	StyldServerHTTPPort = "STYLD_SERVER_HTTP_PORT"

	// StyldModelsPath is the environment variable used to override the models directory
	StyldModelsPath = "STYLD_MODELS_PATH"

	// StyldVolumesPath is the environment variable used to override the volumes directory
	StyldVolumesPath = "STYLD_VOLUMES_PATH"

	// StyldLogFile is the environment variable used to enable file logging
	StyldLogFile = "STYLD_LOG_FILE"
)
