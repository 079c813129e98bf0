// Package config provides configuration parsing for uprename.
//
// The configuration is stored in uprename.json. This package handles
// loading, saving, and validating configuration. Every field is optional;
// missing values take the defaults from New.
//
// # Configuration File Structure
//
//	{
//	  "server": {"address": ":8080", "readHeaderTimeout": "5s", "shutdownTimeout": "30s"},
//	  "routes": [
//	    {"path": "/upload", "enabled": true, "upstream": "http://127.0.0.1:9000"}
//	  ],
//	  "maxBodySize": 10485760,
//	  "layout": {"trailerWidth": 60},
//	  "storage": {
//	    "backend": "s3",
//	    "s3": {"bucket": "uploads", "region": "eu-west-1"}
//	  },
//	  "metrics": {"enabled": true, "path": "/metrics"},
//	  "tracing": {"enabled": false},
//	  "feed": {"enabled": true, "history": 50},
//	  "log": {"level": "info", "format": "json"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Server.Address)
package config
