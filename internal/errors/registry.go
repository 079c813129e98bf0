package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The configuration file passed with --config does not exist.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config JSON",
		Detail:   "uprename.json contains a JSON syntax error.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "No enabled upload route",
		Detail:   "At least one route must be enabled, and every route path must start with \"/\".",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid storage backend",
		Detail:   "storage.backend must be \"fs\" or \"s3\". The s3 backend requires storage.s3.bucket.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations are written as Go duration strings such as \"5s\" or \"1m30s\".",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid body layout",
		Detail:   "layout.trailerWidth must be a positive number of bytes.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Invalid log setting",
		Detail:   "log.level must be debug, info, warn or error, and log.format must be text or json.",
	},
	"E107": {
		Category: CategoryConfig,
		Message:  "Invalid upstream URL",
		Detail:   "A route upstream must be an absolute http or https URL.",
	},

	// ============================================
	// Storage Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryStorage,
		Message:  "Storage root not accessible",
		Detail:   "The fs backend root does not exist or is not a directory.",
	},
	"E201": {
		Category: CategoryStorage,
		Message:  "AWS configuration failed",
		Detail:   "The shared AWS configuration could not be loaded for the s3 backend.",
	},
	"E202": {
		Category: CategoryStorage,
		Message:  "Staging failed",
		Detail:   "A file could not be copied into the staging directory.",
	},

	// ============================================
	// Body Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryBody,
		Message:  "Malformed upload body",
		Detail:   "The body does not contain the name, content_type, path, md5 and size fields the upload module writes for every file.",
	},
	"E301": {
		Category: CategoryBody,
		Message:  "Body file not readable",
		Detail:   "The saved request body could not be read.",
	},
	"E302": {
		Category: CategoryBody,
		Message:  "Some uploads could not be relocated",
		Detail:   "The body was scanned completely, but at least one staged file could not be moved.",
	},

	// ============================================
	// Server Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryServer,
		Message:  "Port already in use",
		Detail:   "Another process is listening on the configured address.",
	},
	"E401": {
		Category: CategoryServer,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},

	// ============================================
	// CLI Errors (E500-E519)
	// ============================================

	"E500": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with missing or conflicting arguments.",
	},
	"E501": {
		Category: CategoryCLI,
		Message:  "Invalid boundary",
		Detail:   "Multipart boundaries must be non-empty and must not contain line breaks.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
